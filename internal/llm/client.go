package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/prepstack/prepstack/internal/llm/prompts"
)

// GenerationSpec describes one question-generation request.
type GenerationSpec struct {
	ExamFamily    string   `json:"exam_family"`
	Skill         string   `json:"skill"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	NumQuestions  int      `json:"num_questions"`
	QuestionTypes []string `json:"question_types,omitempty"`
}

// EssayRequest packages one free-response answer for external band
// grading.
type EssayRequest struct {
	Prompt     string
	AnswerText string
	ExamFamily string
	RubricHint string
}

// Service is the external-model boundary: question generation, band
// grading and speech synthesis. Calls may block for seconds; callers must
// treat them as cancellable and must not hold a storage transaction open
// across them.
type Service interface {
	GenerateQuestions(ctx context.Context, spec GenerationSpec) (json.RawMessage, error)
	GradeWriting(ctx context.Context, req EssayRequest) BandResult
	GradeSpeaking(ctx context.Context, req EssayRequest) BandResult
	SynthesizeSpeech(ctx context.Context, text string) (io.ReadCloser, error)
}

// Client implements Service over an OpenAI-compatible API.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
	voice       string
}

// New creates a Client. baseURL may be empty for the default endpoint.
func New(baseURL, apiKey, model string, maxTokens int, temperature float32, voice string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if maxTokens == 0 {
		maxTokens = 2000
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		voice:       voice,
	}
}

// GenerateQuestions asks the model for a skill's content and returns the
// raw response text for the normalizer; no shape is assumed here.
func (c *Client) GenerateQuestions(ctx context.Context, spec GenerationSpec) (json.RawMessage, error) {
	prompt := prompts.Generation(spec.ExamFamily, spec.Skill, spec.Topic, spec.Difficulty,
		spec.NumQuestions, spec.QuestionTypes)

	raw, err := c.complete(ctx, prompts.GenerationSystem, prompt, c.temperature, c.generationTokens(spec.NumQuestions))
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	return json.RawMessage(raw), nil
}

// generationTokens widens the completion budget for large question sets.
func (c *Client) generationTokens(numQuestions int) int {
	switch {
	case numQuestions >= 40:
		return 4096
	case numQuestions > 25:
		return 3500
	case numQuestions > 15:
		return 2500
	default:
		return c.maxTokens
	}
}

// GradeWriting grades a writing answer on the band scale. Transport
// errors and unparseable replies both surface as a flagged zero-score
// result rather than an error, so one bad grading call never blocks the
// rest of a submission.
func (c *Client) GradeWriting(ctx context.Context, req EssayRequest) BandResult {
	prompt := prompts.WritingGrading(req.ExamFamily, req.Prompt, req.AnswerText, req.RubricHint)
	raw, err := c.complete(ctx, prompts.GradingSystem(req.ExamFamily, "Writing"), prompt, 0.3, c.maxTokens)
	if err != nil {
		return BandResult{Narrative: err.Error(), ParseError: true}
	}
	return ParseBandResult(raw)
}

// GradeSpeaking grades a speaking transcript on the band scale.
func (c *Client) GradeSpeaking(ctx context.Context, req EssayRequest) BandResult {
	prompt := prompts.SpeakingGrading(req.ExamFamily, req.Prompt, req.AnswerText, req.RubricHint)
	raw, err := c.complete(ctx, prompts.GradingSystem(req.ExamFamily, "Speaking"), prompt, 0.3, c.maxTokens)
	if err != nil {
		return BandResult{Narrative: err.Error(), ParseError: true}
	}
	return ParseBandResult(raw)
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
