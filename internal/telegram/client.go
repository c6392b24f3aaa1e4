package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"gwi.com/verbal-diary/internal/logging"
	"gwi.com/verbal-diary/internal/utils"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

// Client talks to the Bot API. Outgoing messages share one token bucket.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      utils.RetryConfig
	logger     *slog.Logger
}

func NewClient(token string, perSecond int, logger *slog.Logger) *Client {
	return NewClientWithURL(token, defaultBaseURL, perSecond, logger)
}

func NewClientWithURL(token, baseURL string, perSecond int, logger *slog.Logger) *Client {
	if perSecond <= 0 {
		perSecond = 25
	}
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 3
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), perSecond),
		retry:      retry,
		logger:     logger.With("bot", logging.MaskToken(token)),
	}
}

func call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var zero T
	payload, err := json.Marshal(params)
	if err != nil {
		return zero, fmt.Errorf("marshaling %s params: %w", method, err)
	}

	var result T
	err = utils.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method), bytes.NewReader(payload))
		if err != nil {
			return utils.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending %s: %w", method, err)
		}
		defer resp.Body.Close()

		var body apiResponse[T]
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			if utils.IsRetryableHTTPStatus(resp.StatusCode) {
				return fmt.Errorf("telegram %s: status %d", method, resp.StatusCode)
			}
			return utils.Permanent(fmt.Errorf("decoding %s response: %w", method, err))
		}
		if !body.OK {
			apiErr := &APIError{Method: method, Code: body.ErrorCode, Description: body.Description}
			if body.Parameters != nil && body.Parameters.RetryAfter > 0 {
				apiErr.RetryAfter = time.Duration(body.Parameters.RetryAfter) * time.Second
			}
			if !utils.IsRetryableHTTPStatus(body.ErrorCode) {
				return utils.Permanent(apiErr)
			}
			if apiErr.RetryAfter > 0 {
				if err := c.sleep(ctx, apiErr.RetryAfter); err != nil {
					return utils.Permanent(err)
				}
			}
			return apiErr
		}
		result = body.Result
		return nil
	})
	return result, err
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.retry.Sleep != nil {
		return c.retry.Sleep(ctx, d)
	}
	return utils.SleepContext(ctx, d)
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	})
}

// SendMessage sends plain text. Callers split texts over the 4096 character limit.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, err := call[Message](ctx, c, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, err := call[File](ctx, c, "getFile", map[string]string{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file body: %w", err)
	}
	return data, nil
}

// Download resolves fileID and fetches its content.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("file %s has no download path", fileID)
	}
	data, err := c.DownloadFile(ctx, f.FilePath)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("file downloaded", "file_id", fileID, "bytes", len(data))
	return data, nil
}

func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := call[bool](ctx, c, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message"},
	})
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", map[string]any{})
	return err
}
