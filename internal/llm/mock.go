package llm

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
)

// Mock is a deterministic Service for tests. Generation responses are
// returned in FIFO order and every request is recorded.
type Mock struct {
	mu        sync.Mutex
	Responses []json.RawMessage
	GenErr    error
	Band      BandResult
	SpeechErr error

	GenCalls    []GenerationSpec
	GradeCalls  []EssayRequest
	SpeechCalls []string
}

func (m *Mock) GenerateQuestions(_ context.Context, spec GenerationSpec) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenCalls = append(m.GenCalls, spec)
	if m.GenErr != nil {
		return nil, m.GenErr
	}
	if len(m.Responses) == 0 {
		return json.RawMessage(`{}`), nil
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

func (m *Mock) GradeWriting(_ context.Context, req EssayRequest) BandResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GradeCalls = append(m.GradeCalls, req)
	return m.Band
}

func (m *Mock) GradeSpeaking(_ context.Context, req EssayRequest) BandResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GradeCalls = append(m.GradeCalls, req)
	return m.Band
}

func (m *Mock) SynthesizeSpeech(_ context.Context, text string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SpeechCalls = append(m.SpeechCalls, text)
	if m.SpeechErr != nil {
		return nil, m.SpeechErr
	}
	return io.NopCloser(strings.NewReader("ID3 mock audio")), nil
}
