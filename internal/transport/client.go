// Package transport provides the HTTP client for the Zygotrix AI chat API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zygotrix/zigi-go/internal/models"
	"github.com/zygotrix/zigi-go/internal/stream"
)

const apiPrefix = "/api/zygotrix-ai"

// DefaultTimeout bounds a whole exchange, generous enough for slow model
// responses.
const DefaultTimeout = 5 * time.Minute

// ChatRequest is the wire request for sending a message. ConversationID is
// empty for a brand-new conversation.
type ChatRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Message        string              `json:"message"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	Model          string              `json:"model,omitempty"`
	Stream         bool                `json:"stream"`
	EnabledTools   []string            `json:"enabled_tools,omitempty"`
}

// ChatResponse is the non-streamed response document.
type ChatResponse struct {
	ConversationID    string           `json:"conversation_id"`
	Message           models.Message   `json:"message"`
	ConversationTitle string           `json:"conversation_title,omitempty"`
	Usage             *models.Metadata `json:"usage,omitempty"`
}

// ConversationListResponse is the paged conversation listing.
type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
	Total         int                          `json:"total"`
	Page          int                          `json:"page"`
	PageSize      int                          `json:"page_size"`
}

// MessageListResponse wraps a conversation's message history.
type MessageListResponse struct {
	Messages       []models.Message `json:"messages"`
	Total          int              `json:"total"`
	HasMore        bool             `json:"has_more"`
	ConversationID string           `json:"conversation_id"`
}

// Config holds client settings.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client talks to the chat server over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a chat API client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Send submits a chat request and returns a decoder over the response. The
// caller owns the decoder and must Close it. Streaming and single-document
// responses are both handled; the decoder normalizes them.
func (c *Client) Send(ctx context.Context, req ChatRequest) (*stream.Decoder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     parseDetail(errBody),
		}
	}

	return stream.NewDecoder(resp.Body, resp.Header.Get("Content-Type"), c.logger), nil
}

// Regenerate re-asks the model for an assistant message and returns the
// replacement. Always non-streaming.
func (c *Client) Regenerate(ctx context.Context, conversationID, messageID string) (*ChatResponse, error) {
	path := fmt.Sprintf("%s/chat/%s/regenerate/%s",
		apiPrefix, url.PathEscape(conversationID), url.PathEscape(messageID))

	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches conversation metadata.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMessages fetches a conversation's message history.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out MessageListResponse
	path := apiPrefix + "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// ListConversations returns a page of conversation summaries.
func (c *Client) ListConversations(ctx context.Context, page, pageSize int) (*ConversationListResponse, error) {
	path := fmt.Sprintf("%s/conversations?page=%s&page_size=%s",
		apiPrefix, strconv.Itoa(page), strconv.Itoa(pageSize))

	var out ConversationListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation on the server.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, apiPrefix+"/conversations/"+url.PathEscape(id), nil, nil)
}

// doJSON performs a request with optional JSON body and decodes the JSON
// response into result when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     parseDetail(data),
		}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
