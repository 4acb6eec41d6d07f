package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Conversations lists the user's conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.getJSON(ctx, "/chat/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Conversation loads one conversation with its messages and the attachments
// its answers may reference.
func (c *Client) Conversation(ctx context.Context, id int64) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.getJSON(ctx, fmt.Sprintf("/chat/conversations/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameConversation changes a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) error {
	status, data, err := c.sendJSON(ctx, MetadataTimeout, http.MethodPut,
		fmt.Sprintf("/chat/conversations/%d", id), map[string]string{"titulo": title})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return newError(status, data)
	}
	return nil
}

// DeleteConversation removes a conversation on the server.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	status, data, err := c.do(ctx, MetadataTimeout, http.MethodDelete,
		c.apiURL(fmt.Sprintf("/chat/conversations/%d", id)), nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return newError(status, data)
	}
	return nil
}

// Modules lists the modules the user can chat about.
func (c *Client) Modules(ctx context.Context) ([]Module, error) {
	var out []Module
	if err := c.getJSON(ctx, "/modules", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Systems lists the systems of a module. Most modules have none.
func (c *Client) Systems(ctx context.Context, moduleID int64) ([]System, error) {
	var out []System
	if err := c.getJSON(ctx, fmt.Sprintf("/systems?module_id=%d", moduleID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveModel returns the server's active LLM, or nil when none is active.
func (c *Client) ActiveModel(ctx context.Context) (*ActiveModel, error) {
	var out ActiveModel
	err := c.getJSON(ctx, "/llm/active-model", &out)
	if StatusCode(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Send posts a chat message and waits for the assistant's answer. Requests
// with an image get the longer timeout. A 200 without a body is an error.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	timeout := SendTimeout
	if req.ImageBase64 != "" {
		timeout = ImageSendTimeout
	}

	status, data, err := c.sendJSON(ctx, timeout, http.MethodPost, "/chat/send", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, newError(status, data)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyResponse
	}

	var out SendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return &out, nil
}

// SendFeedback records a thumbs up or down. The server answers 201 for new
// feedback and 200 when it replaces an earlier rating.
func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	status, data, err := c.sendJSON(ctx, MetadataTimeout, http.MethodPost, "/chat/feedback", fb)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return newError(status, data)
	}
	return nil
}
