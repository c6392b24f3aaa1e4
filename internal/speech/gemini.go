package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gwi.com/verbal-diary/internal/core"
	"gwi.com/verbal-diary/internal/utils"
)

const geminiInstruction = "You are a transcription service. Transcribe the spoken audio verbatim in the language it is spoken. " +
	"Return only the transcript text, with no commentary, labels or formatting."

type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

type GeminiClient struct {
	client   *genai.Client
	model    string
	generate generateFunc
	retry    utils.RetryConfig
	logger   *slog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, attempts int, logger *slog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}

	gm := client.GenerativeModel(model)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(geminiInstruction)},
	}
	temp := float32(0)
	gm.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	retry := utils.DefaultRetryConfig()
	if attempts > 0 {
		retry.MaxAttempts = attempts
	}
	return &GeminiClient{
		client:   client,
		model:    model,
		generate: gm.GenerateContent,
		retry:    retry,
		logger:   logger,
	}, nil
}

func (c *GeminiClient) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Warn("error closing GenAI client", "error", err)
		}
	}
}

func (c *GeminiClient) Name() string  { return "gemini" }
func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Transcribe(ctx context.Context, file core.AudioFile) (string, error) {
	mime := file.MIMEType
	if mime == "" {
		mime = "audio/ogg"
	}

	var (
		text     string
		attempts int
	)
	err := utils.WithRetry(ctx, c.retry, func() error {
		attempts++
		resp, err := c.generate(ctx,
			genai.Blob{MIMEType: mime, Data: file.Data},
			genai.Text("Transcribe this audio."))
		if err != nil {
			return fmt.Errorf("gemini request failed: %w", err)
		}
		text, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", &core.TranscriptionError{Provider: c.Name(), Attempts: attempts, Err: err}
	}
	return text, nil
}

var errEmptyResponse = errors.New("gemini response had no candidates")

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String()), nil
}
