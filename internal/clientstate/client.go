package clientstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/carecompanion/internal/api"
	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/internal/store"
)

// ErrNoProfile is returned by operations that need a registered user when the
// state has none.
var ErrNoProfile = errors.New("clientstate: no profile, run onboarding first")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clientstate: server returned %d: %s", e.Status, e.Message)
}

// Client talks to the carecompanion HTTP API and records the outcome of each
// call in its [Manager]. Every successful mutation is saved to disk.
type Client struct {
	base  string
	http  *http.Client
	state *Manager
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, state *Manager, opts ...ClientOption) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: 90 * time.Second},
		state: state,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the manager backing c.
func (c *Client) State() *Manager { return c.state }

// CreateProfile registers a new user and stores it as the active profile.
func (c *Client) CreateProfile(ctx context.Context, p persona.Profile) (*store.User, error) {
	var resp api.UserResponse
	if err := c.do(ctx, http.MethodPost, "/api/profile", p, &resp); err != nil {
		return nil, err
	}
	return c.remember(resp.User)
}

// UpdateProfile replaces the persona of the active user.
func (c *Client) UpdateProfile(ctx context.Context, p persona.Profile) (*store.User, error) {
	cur := c.state.Snapshot().Profile
	if cur == nil {
		return nil, ErrNoProfile
	}
	var resp api.UserResponse
	if err := c.do(ctx, http.MethodPut, "/api/profile", api.ProfileUpdate{UserID: cur.ID, Profile: p}, &resp); err != nil {
		return nil, err
	}
	return c.remember(resp.User)
}

func (c *Client) remember(u *store.User) (*store.User, error) {
	if u == nil {
		return nil, errors.New("clientstate: server returned no user")
	}
	c.state.SetProfile(UserProfile{ID: u.ID, Profile: u.Profile})
	return u, c.state.Save()
}

// StartSession opens a new conversation and makes it active.
func (c *Client) StartSession(ctx context.Context) (*store.Session, error) {
	cur := c.state.Snapshot().Profile
	if cur == nil {
		return nil, ErrNoProfile
	}
	var resp api.SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/session", api.SessionRequest{UserID: cur.ID}, &resp); err != nil {
		return nil, err
	}
	c.state.StartSession(resp.Session.ID)
	return &resp.Session.Session, c.state.Save()
}

// Send posts text to the active session, starting one first when there is
// none, and returns the assistant reply with its cues.
func (c *Client) Send(ctx context.Context, text string) (*api.ChatMessage, error) {
	snap := c.state.Snapshot()
	if snap.Profile == nil {
		return nil, ErrNoProfile
	}
	sessionID := snap.SessionID
	if sessionID == "" {
		sess, err := c.StartSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = sess.ID
	}

	sent := time.Now()
	var resp api.ChatResponse
	req := api.ChatRequest{UserID: snap.Profile.ID, SessionID: sessionID, Message: text}
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}

	reply := resp.Message
	c.state.AppendMessage(Message{Role: store.RoleUser, Content: text, At: sent})
	c.state.AppendMessage(Message{
		Role:       store.RoleAssistant,
		Content:    reply.Content,
		Expression: reply.FacialExpression,
		Animation:  reply.Animation,
		Duration:   reply.Duration,
		At:         reply.CreatedAt,
	})
	return &reply, c.state.Save()
}

// Sessions lists the active user's sessions, newest first, each with its
// latest message.
func (c *Client) Sessions(ctx context.Context) ([]api.SessionWithMessages, error) {
	cur := c.state.Snapshot().Profile
	if cur == nil {
		return nil, ErrNoProfile
	}
	var resp api.SessionsResponse
	path := "/api/session?userId=" + url.QueryEscape(cur.ID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Ping checks that the server is live.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do sends in as JSON and decodes a 2xx response body into out. Either may
// be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("clientstate: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("clientstate: %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clientstate: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("clientstate: decode %s response: %w", path, err)
	}
	return nil
}
