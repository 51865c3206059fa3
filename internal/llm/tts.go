package llm

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/storage"
)

// SynthesizeSpeech renders text to an MP3 stream. The caller owns the
// returned reader.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Voice: openai.SpeechVoice(c.voice),
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	return resp, nil
}

// GenerateListeningAudio synthesizes one recording per section that
// carries a transcript but no audio reference yet, storing it in the
// blob store and filling in AudioRef as a served path. Failures are
// logged and the section kept without audio; a missing recording should
// not abort persistence of the whole skill.
func GenerateListeningAudio(ctx context.Context, svc Service, blobs storage.BlobStore, sections []content.Section) {
	for i := range sections {
		sec := &sections[i]
		if sec.Script == "" || sec.AudioRef != "" {
			continue
		}
		key := fmt.Sprintf("audio/listening_part_%d_%s.mp3", i+1, uuid.NewString())
		stream, err := svc.SynthesizeSpeech(ctx, sec.Script)
		if err != nil {
			log.Printf("listening audio: part %d: %v", i+1, err)
			continue
		}
		_, err = blobs.Put(key, stream)
		stream.Close()
		if err != nil {
			log.Printf("listening audio: store part %d: %v", i+1, err)
			continue
		}
		sec.AudioRef = "/uploads/" + key
	}
}
