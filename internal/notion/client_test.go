package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClientWithURL("secret-token", "Title", srv.URL)
	c.retry.Sleep = noSleep
	return c
}

func titledPage(id, title string) map[string]any {
	return map[string]any{
		"id": id,
		"properties": map[string]any{
			"Title": map[string]any{
				"type": "title",
				"title": []map[string]any{
					{"type": "text", "text": map[string]string{"content": title}, "plain_text": title},
				},
			},
		},
	}
}

func TestQueryDatabase_FollowsCursor(t *testing.T) {
	var cursors []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/databases/db1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		cursors = append(cursors, req.StartCursor)

		w.Header().Set("Content-Type", "application/json")
		if req.StartCursor == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"results":     []any{titledPage("p1", "2024 Week 06")},
				"has_more":    true,
				"next_cursor": "c2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results":     []any{titledPage("p2", "2024 Week 07")},
			"has_more":    false,
			"next_cursor": nil,
		})
	})

	pages, err := c.QueryDatabase(context.Background(), "db1")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "c2"}, cursors)
	assert.Equal(t, []Page{{ID: "p1", Title: "2024 Week 06"}, {ID: "p2", Title: "2024 Week 07"}}, pages)
}

func TestCreatePage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pages", r.URL.Path)

		var body struct {
			Parent     map[string]string `json:"parent"`
			Properties map[string]struct {
				Title []richText `json:"title"`
			} `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "db1", body.Parent["database_id"])
		require.Len(t, body.Properties["Title"].Title, 1)
		assert.Equal(t, "2024 Week 07", body.Properties["Title"].Title[0].Text.Content)

		json.NewEncoder(w).Encode(map[string]any{"id": "new-page"})
	})

	page, err := c.CreatePage(context.Background(), "db1", "2024 Week 07")
	require.NoError(t, err)
	assert.Equal(t, "new-page", page.ID)
}

func TestAppendBlocks_Shape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/blocks/page-1/children", r.URL.Path)

		var body struct {
			Children []map[string]any `json:"children"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Children, 2)
		assert.Equal(t, "heading_3", body.Children[0]["type"])
		assert.Contains(t, body.Children[0], "heading_3")
		assert.Equal(t, "paragraph", body.Children[1]["type"])
		w.Write([]byte(`{"object":"list","results":[]}`))
	})

	err := c.AppendBlocks(context.Background(), "page-1", []Block{Heading3("h"), Paragraph("body")})
	require.NoError(t, err)
}

func TestDo_ClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
	})

	_, err := c.QueryDatabase(context.Background(), "db1")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Equal(t, 1, calls)
}

func TestDo_ServerErrorIsRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"p"}`))
	})

	page, err := c.CreatePage(context.Background(), "db1", "x")
	require.NoError(t, err)
	assert.Equal(t, "p", page.ID)
	assert.Equal(t, 3, calls)
}
