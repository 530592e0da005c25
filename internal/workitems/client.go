// Package workitems implements the engine's work item service against the
// work-tracking system's REST API.
package workitems

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/workstack/macrod/pkg/services"
)

const defaultTimeout = 30 * time.Second

// Client talks to the work-tracking API. It implements
// services.WorkItemService and services.NotificationService.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) CreateItem(ctx context.Context, title string, fields map[string]any) (*services.WorkItem, error) {
	body := map[string]any{"title": title, "fields": fields}

	var item services.WorkItem
	if err := c.do(ctx, http.MethodPost, "/api/v1/items", body, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

func (c *Client) UpdateItem(ctx context.Context, itemID string, fields map[string]any) (*services.WorkItem, error) {
	body := map[string]any{"fields": fields}

	var item services.WorkItem
	if err := c.do(ctx, http.MethodPatch, "/api/v1/items/"+itemID, body, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

func (c *Client) TransitionItem(ctx context.Context, itemID, targetState string) (*services.WorkItem, error) {
	body := map[string]any{"target_state": targetState}

	var item services.WorkItem
	if err := c.do(ctx, http.MethodPost, "/api/v1/items/"+itemID+"/transitions", body, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

func (c *Client) AddComment(ctx context.Context, itemID, author, text string) error {
	body := map[string]any{"author": author, "text": text}

	return c.do(ctx, http.MethodPost, "/api/v1/items/"+itemID+"/comments", body, nil)
}

func (c *Client) AddRelationship(ctx context.Context, itemID, relatedID, relationType string) error {
	body := map[string]any{"related_id": relatedID, "type": relationType}

	return c.do(ctx, http.MethodPost, "/api/v1/items/"+itemID+"/relationships", body, nil)
}

// Send delivers a notification through the API's notification endpoint.
func (c *Client) Send(ctx context.Context, target, message string) error {
	body := map[string]any{"target": target, "message": message}

	return c.do(ctx, http.MethodPost, "/api/v1/notifications", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
