package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gwi.com/verbal-diary/internal/core"
	"gwi.com/verbal-diary/internal/utils"
)

const defaultHuggingFaceAttempts = 5

// HuggingFaceClient calls the hosted Inference API. The API answers with
// {"error", "estimated_time"} while a cold model loads; the client waits half
// the estimate and asks again.
type HuggingFaceClient struct {
	token       string
	model       string
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

func NewHuggingFaceClient(token, model string, attempts int, logger *slog.Logger) *HuggingFaceClient {
	return NewHuggingFaceClientWithURL(token, model, attempts, "https://api-inference.huggingface.co", logger)
}

func NewHuggingFaceClientWithURL(token, model string, attempts int, baseURL string, logger *slog.Logger) *HuggingFaceClient {
	if model == "" {
		model = "openai/whisper-large-v3"
	}
	if attempts <= 0 {
		attempts = defaultHuggingFaceAttempts
	}
	return &HuggingFaceClient{
		token:       token,
		model:       model,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		baseURL:     baseURL,
		maxAttempts: attempts,
		sleep:       utils.SleepContext,
		logger:      logger,
	}
}

func (c *HuggingFaceClient) Name() string  { return "huggingface" }
func (c *HuggingFaceClient) Model() string { return c.model }

type hfResponse struct {
	Text          string   `json:"text"`
	Error         string   `json:"error"`
	EstimatedTime *float64 `json:"estimated_time"`
}

var errModelLoading = errors.New("model loading")

func (c *HuggingFaceClient) Transcribe(ctx context.Context, file core.AudioFile) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, err := c.query(ctx, file)
		if err != nil {
			return "", &core.TranscriptionError{Provider: c.Name(), Attempts: attempt, Err: err}
		}

		if res.Error == "" {
			return res.Text, nil
		}
		if res.EstimatedTime == nil {
			return "", &core.TranscriptionError{Provider: c.Name(), Attempts: attempt, Err: errors.New(res.Error)}
		}

		lastErr = fmt.Errorf("%w: %s", errModelLoading, res.Error)
		if attempt == c.maxAttempts {
			break
		}
		wait := time.Duration(*res.EstimatedTime / 2 * float64(time.Second))
		c.logger.Info("huggingface model loading, waiting", "model", c.model, "wait", wait, "attempt", attempt)
		if err := c.sleep(ctx, wait); err != nil {
			return "", &core.TranscriptionError{Provider: c.Name(), Attempts: attempt, Err: err}
		}
	}
	return "", &core.TranscriptionError{Provider: c.Name(), Attempts: c.maxAttempts, Err: lastErr}
}

func (c *HuggingFaceClient) query(ctx context.Context, file core.AudioFile) (*hfResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+c.model, bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if file.MIMEType != "" {
		req.Header.Set("Content-Type", file.MIMEType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var res hfResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("huggingface API error %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK && res.Error == "" {
		return nil, fmt.Errorf("huggingface API error %d: %s", resp.StatusCode, string(body))
	}
	return &res, nil
}
