package speech

import (
	"context"
	"fmt"
	"log/slog"

	"gwi.com/verbal-diary/internal/config"
	"gwi.com/verbal-diary/internal/core"
)

// NewProvider selects the transcription backend named by cfg.SpeechProvider.
// The returned close func releases provider resources and is never nil.
func NewProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Transcriber, func(), error) {
	noop := func() {}
	switch cfg.SpeechProvider {
	case "openai":
		return NewWhisperClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.TranscribeAttempts), noop, nil
	case "huggingface":
		return NewHuggingFaceClient(cfg.HuggingFaceToken, cfg.HuggingFaceModel, 0, logger), noop, nil
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.TranscribeAttempts, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown speech provider %q", cfg.SpeechProvider)
}
