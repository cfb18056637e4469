// Package remote implements core.RecordStore against a kurspanel server:
// REST for reads and writes, websocket push channels for subscriptions.
package remote

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
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/core"
	"github.com/kurspanel/kurspanel-server/internal/proto"
)

// redialDelay is the pause before a dropped push channel is re-established.
// The core above treats subscription errors as advisory and expects this
// layer to keep the channel alive.
const redialDelay = 2 * time.Second

// Client talks to a kurspanel server.
type Client struct {
	baseURL string
	wsURL   string
	token   string
	http    *http.Client
	log     *zerolog.Logger
}

// New builds a client for the server at baseURL (e.g. http://localhost:8080)
// using the session token from a prior login.
func New(baseURL, token string, logger *zerolog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	wsURL := baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return &Client{
		baseURL: baseURL,
		wsURL:   wsURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     logger,
	}
}

// Login authenticates against the server and returns a ready client plus the
// selected school.
func Login(ctx context.Context, baseURL, schoolID, password string, logger *zerolog.Logger) (*Client, *core.School, error) {
	c := New(baseURL, "", logger)
	var resp proto.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/login",
		proto.LoginRequest{SchoolID: schoolID, Password: password}, &resp)
	if err != nil {
		return nil, nil, err
	}
	c.token = resp.Token
	school := proto.ToSchool(resp.School)
	return c, &school, nil
}

// FetchSchools reads the full current snapshot.
func (c *Client) FetchSchools(ctx context.Context) ([]core.School, error) {
	var dtos []proto.SchoolDTO
	if err := c.do(ctx, http.MethodGet, "/api/schools", nil, &dtos); err != nil {
		return nil, err
	}
	return proto.ToSnapshot(dtos), nil
}

// WriteCandidates replaces one school's counts.
func (c *Client) WriteCandidates(ctx context.Context, schoolID string, counts core.CategoryCounts) error {
	plain := make(map[string]int, len(counts))
	for cat, n := range counts {
		plain[string(cat)] = n
	}
	path := "/api/schools/" + url.PathEscape(schoolID) + "/candidates"
	return c.do(ctx, http.MethodPut, path, proto.CandidatesRequest{Candidates: plain}, nil)
}

// AppendMessage appends a chat message and returns the store-assigned id.
func (c *Client) AppendMessage(ctx context.Context, msg core.Message) (string, error) {
	var resp proto.AppendMessageResponse
	err := c.do(ctx, http.MethodPost, "/api/messages", proto.AppendMessageRequest{
		SchoolID:   msg.SchoolID,
		SchoolName: msg.SchoolName,
		Content:    msg.Content,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// SubscribeSchools opens the snapshot push channel.
func (c *Client) SubscribeSchools(cb func([]core.School, error)) (func(), error) {
	return c.runSubscription("/ws/schools", func(frame proto.Outbound) {
		switch frame.Type {
		case proto.OutboundTypeSnapshot:
			cb(proto.ToSnapshot(frame.Schools), nil)
		case proto.OutboundTypeError:
			cb(nil, errors.New(frame.Error))
		}
	}, func(err error) {
		cb(nil, err)
	}), nil
}

// SubscribeMessages opens the chat message push channel.
func (c *Client) SubscribeMessages(cb func(core.Message, error)) (func(), error) {
	return c.runSubscription("/ws/messages", func(frame proto.Outbound) {
		switch frame.Type {
		case proto.OutboundTypeMessage:
			if frame.Message != nil {
				cb(proto.ToMessage(*frame.Message), nil)
			}
		case proto.OutboundTypeError:
			cb(core.Message{}, errors.New(frame.Error))
		}
	}, func(err error) {
		cb(core.Message{}, err)
	}), nil
}

// runSubscription keeps one push channel alive: dial, read frames, and on
// any failure report it and redial until unsubscribed. Duplicated frames
// across redials are fine, the core dedups; silently losing the channel is
// not.
func (c *Client) runSubscription(path string, handle func(proto.Outbound), report func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		target := c.wsURL + path + "?token=" + url.QueryEscape(c.token)
		for {
			conn, _, err := websocket.Dial(ctx, target, nil)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn().Err(err).Str("path", path).Msg("push channel dial failed")
				report(err)
				if !sleepCtx(ctx, redialDelay) {
					return
				}
				continue
			}

			for {
				var frame proto.Outbound
				if err := wsjson.Read(ctx, conn, &frame); err != nil {
					conn.Close(websocket.StatusNormalClosure, "closing")
					if ctx.Err() != nil {
						return
					}
					c.log.Warn().Err(err).Str("path", path).Msg("push channel dropped")
					report(err)
					break
				}
				if ctx.Err() != nil {
					conn.Close(websocket.StatusNormalClosure, "closing")
					return
				}
				handle(frame)
			}

			if !sleepCtx(ctx, redialDelay) {
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}

// do performs one REST call with the session token attached.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr proto.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
