package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/models"
)

// Client talks to the delivery routes of a running chatd.
type Client struct {
	base    string
	key     string
	timeout time.Duration
	hc      *fasthttp.Client
}

// NewClient returns a client for base, e.g. "http://127.0.0.1:8080".
// An empty key sends no credentials.
func NewClient(base, key string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		timeout: timeout,
		hc: &fasthttp.Client{
			Name:                "chatd-tail",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// WithDial swaps the dialer. Tests use it with an in-memory listener.
func (c *Client) WithDial(dial fasthttp.DialFunc) *Client {
	c.hc.Dial = dial
	return c
}

// ChannelMessages fetches the newest window of a channel, ascending.
func (c *Client) ChannelMessages(channelID string, limit int) ([]models.ChannelMessageView, error) {
	var out struct {
		Messages []models.ChannelMessageView `json:"messages"`
	}
	path := "/v1/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.get(path, limit, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// PrivateThread fetches the thread window between user and peer. The server
// marks peer's messages to user as read as a side effect.
func (c *Client) PrivateThread(userID, peerID string, limit int) ([]models.PrivateMessageView, error) {
	var out struct {
		Messages []models.PrivateMessageView `json:"messages"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/threads/" + url.PathEscape(peerID) + "/messages"
	if err := c.get(path, limit, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Conversations fetches the conversation list of user.
func (c *Client) Conversations(userID string) ([]models.ConversationView, error) {
	var out struct {
		Conversations []models.ConversationView `json:"conversations"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/conversations"
	if err := c.get(path, 0, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) get(path string, limit int, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.base + path
	if limit > 0 {
		uri += "?limit=" + strconv.Itoa(limit)
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	if err := c.hc.DoTimeout(req, resp, c.timeout); err != nil {
		return apperr.Transient(err, "delivery request failed")
	}
	status := resp.StatusCode()
	if status != fasthttp.StatusOK {
		return statusError(status, resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// statusError classifies a non-200 response. 429 and 5xx are worth retrying.
func statusError(status int, body []byte) error {
	var eb struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error
	if msg == "" {
		msg = fasthttp.StatusMessage(status)
	}
	switch {
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return apperr.Transient(errors.New(msg), fmt.Sprintf("server returned %d", status))
	case status == fasthttp.StatusNotFound:
		return apperr.NotFound("%s", msg)
	case status == fasthttp.StatusBadRequest:
		return apperr.Validation("%s", msg)
	default:
		return fmt.Errorf("server returned %d: %s", status, msg)
	}
}
