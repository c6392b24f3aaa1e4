package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gwi.com/verbal-diary/internal/utils"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

type Client struct {
	token         string
	titleProperty string
	httpClient    *http.Client
	baseURL       string
	retry         utils.RetryConfig
}

func NewClient(token, titleProperty string) *Client {
	return NewClientWithURL(token, titleProperty, defaultBaseURL)
}

func NewClientWithURL(token, titleProperty, baseURL string) *Client {
	if titleProperty == "" {
		titleProperty = "Title"
	}
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 3
	return &Client{
		token:         token,
		titleProperty: titleProperty,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		retry:         retry,
	}
}

// APIError is the error object Notion returns with non-2xx responses.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Page is a database row reduced to what the note workflow needs.
type Page struct {
	ID    string
	Title string
}

type richText struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
	PlainText string `json:"plain_text,omitempty"`
}

func textRun(content string) []richText {
	rt := richText{Type: "text"}
	rt.Text.Content = content
	return []richText{rt}
}

type pageObject struct {
	ID         string `json:"id"`
	Properties map[string]struct {
		Type  string     `json:"type"`
		Title []richText `json:"title"`
	} `json:"properties"`
}

func (c *Client) pageFromObject(obj pageObject) Page {
	p := Page{ID: obj.ID}
	prop, ok := obj.Properties[c.titleProperty]
	if !ok {
		for _, candidate := range obj.Properties {
			if candidate.Type == "title" {
				prop = candidate
				break
			}
		}
	}
	for _, rt := range prop.Title {
		if rt.PlainText != "" {
			p.Title += rt.PlainText
		} else {
			p.Title += rt.Text.Content
		}
	}
	return p
}

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type queryResponse struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor *string      `json:"next_cursor"`
}

// QueryDatabase lists every page of the database, following pagination.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	var pages []Page
	req := queryRequest{PageSize: 100}
	for {
		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", req, &resp); err != nil {
			return nil, err
		}
		for _, obj := range resp.Results {
			pages = append(pages, c.pageFromObject(obj))
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

// CreatePage adds a page to the database with title set on the title property.
func (c *Client) CreatePage(ctx context.Context, databaseID, title string) (*Page, error) {
	body := map[string]any{
		"parent": map[string]string{"database_id": databaseID},
		"properties": map[string]any{
			c.titleProperty: map[string]any{"title": textRun(title)},
		},
	}
	var obj pageObject
	if err := c.do(ctx, http.MethodPost, "/pages", body, &obj); err != nil {
		return nil, err
	}
	return &Page{ID: obj.ID, Title: title}, nil
}

// AppendBlocks adds children to a page in one request.
func (c *Client) AppendBlocks(ctx context.Context, pageID string, blocks []Block) error {
	body := map[string]any{"children": blocks}
	return c.do(ctx, http.MethodPatch, "/blocks/"+pageID+"/children", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	return utils.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return utils.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", apiVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			respBody, _ := io.ReadAll(resp.Body)
			apiErr := &APIError{StatusCode: resp.StatusCode}
			if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
				apiErr.Message = string(respBody)
			}
			apiErr.StatusCode = resp.StatusCode
			if utils.IsRetryableHTTPStatus(resp.StatusCode) {
				return apiErr
			}
			return utils.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return utils.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})
}
