package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/wire"
)

// httpSend posts the message through the fallback endpoint. The response
// carries the same payload shape as a socket echo, client id included.
func (c *Client) httpSend(ctx context.Context, conversationID, content, clientID string) (wire.MessagePayload, error) {
	body, err := json.Marshal(map[string]string{
		"content":   content,
		"client_id": clientID,
	})
	if err != nil {
		return wire.MessagePayload{}, err
	}

	url := c.opts.HTTPBase + "/conversation/" + conversationID + "/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return wire.MessagePayload{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return wire.MessagePayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return wire.MessagePayload{}, httpError(resp)
	}
	var frame wire.MessageFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return wire.MessagePayload{}, err
	}
	return frame.Data, nil
}

// FetchHistory retrieves one history page, newest first. perPage 0 leaves
// the server default in place.
func (c *Client) FetchHistory(ctx context.Context, conversationID string, page, perPage int) (wire.HistoryPage, error) {
	url := c.opts.HTTPBase + "/conversation/" + conversationID + "/messages?page=" + strconv.Itoa(page)
	if perPage > 0 {
		url += "&per_page=" + strconv.Itoa(perPage)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return wire.HistoryPage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return wire.HistoryPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return wire.HistoryPage{}, httpError(resp)
	}
	var out wire.HistoryPage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.HistoryPage{}, err
	}
	return out, nil
}

func (c *Client) httpMarkRead(ctx context.Context, conversationID string) error {
	url := c.opts.HTTPBase + "/conversation/" + conversationID + "/read"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func httpError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error != "" {
		return fmt.Errorf("client: http %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("client: http %d", resp.StatusCode)
}
