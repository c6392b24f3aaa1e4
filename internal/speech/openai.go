package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"gwi.com/verbal-diary/internal/core"
	"gwi.com/verbal-diary/internal/utils"
)

type WhisperClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
	retry      utils.RetryConfig
}

func NewWhisperClient(apiKey, model string, attempts int) *WhisperClient {
	return NewWhisperClientWithURL(apiKey, model, attempts, "https://api.openai.com/v1")
}

func NewWhisperClientWithURL(apiKey, model string, attempts int, baseURL string) *WhisperClient {
	if model == "" {
		model = "whisper-1"
	}
	retry := utils.DefaultRetryConfig()
	if attempts > 0 {
		retry.MaxAttempts = attempts
	}
	return &WhisperClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    baseURL,
		retry:      retry,
	}
}

func (c *WhisperClient) Name() string  { return "openai" }
func (c *WhisperClient) Model() string { return c.model }

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, file core.AudioFile) (string, error) {
	var (
		result   transcriptionResponse
		attempts int
	)

	retryErr := utils.WithRetry(ctx, c.retry, func() error {
		attempts++
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)

		name := filepath.Base(file.Path)
		if name == "." || name == "/" {
			name = "audio.ogg"
		}
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			return fmt.Errorf("creating form file: %w", err)
		}

		if _, err = part.Write(file.Data); err != nil {
			return fmt.Errorf("writing audio: %w", err)
		}

		if err = writer.WriteField("model", c.model); err != nil {
			return fmt.Errorf("writing model field: %w", err)
		}

		if err = writer.Close(); err != nil {
			return fmt.Errorf("closing writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
		if err != nil {
			return utils.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("whisper API error %d: %s", resp.StatusCode, string(respBody))
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}

		return nil
	})

	if retryErr != nil {
		return "", &core.TranscriptionError{Provider: c.Name(), Attempts: attempts, Err: retryErr}
	}

	return result.Text, nil
}
