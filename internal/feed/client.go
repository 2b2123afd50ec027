// Package feed fetches new posts and comments from the upstream forum API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"agentwatch/internal/models"

	"go.uber.org/zap"
)

// Client for the upstream forum feed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new feed client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetPosts fetches posts created after since.
func (c *Client) GetPosts(ctx context.Context, since time.Time) ([]models.RawMessage, error) {
	var response struct {
		Posts []models.RawMessage `json:"posts"`
	}
	if err := c.get(ctx, "posts", since, &response); err != nil {
		return nil, err
	}
	for i := range response.Posts {
		response.Posts[i].Type = models.MessageTypePost
	}
	return response.Posts, nil
}

// GetComments fetches comments created after since.
func (c *Client) GetComments(ctx context.Context, since time.Time) ([]models.RawMessage, error) {
	var response struct {
		Comments []models.RawMessage `json:"comments"`
	}
	if err := c.get(ctx, "comments", since, &response); err != nil {
		return nil, err
	}
	for i := range response.Comments {
		response.Comments[i].Type = models.MessageTypeComment
	}
	return response.Comments, nil
}

// Fetch returns posts and comments created after since, oldest first with
// posts ahead of comments at the same instant.
func (c *Client) Fetch(ctx context.Context, since time.Time) ([]models.RawMessage, error) {
	posts, err := c.GetPosts(ctx, since)
	if err != nil {
		return nil, err
	}
	comments, err := c.GetComments(ctx, since)
	if err != nil {
		return nil, err
	}

	messages := append(posts, comments...)
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].Type == models.MessageTypePost && messages[j].Type != models.MessageTypePost
	})

	c.logger.Info("Successfully fetched messages from feed",
		zap.Int("posts", len(posts)),
		zap.Int("comments", len(comments)))
	return messages, nil
}

func (c *Client) get(ctx context.Context, resource string, since time.Time, out interface{}) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, resource)
	if !since.IsZero() {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Error("Failed to create request to feed", zap.String("resource", resource), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request to feed", zap.String("resource", resource), zap.Error(err))
		return fmt.Errorf("failed to make request to feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Feed returned non-OK status", zap.String("resource", resource), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("feed returned status for %s: %d", resource, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("Failed to decode feed response", zap.String("resource", resource), zap.Error(err))
		return fmt.Errorf("failed to decode feed %s response: %w", resource, err)
	}
	return nil
}
