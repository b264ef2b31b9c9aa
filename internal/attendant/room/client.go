package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// clientReadTimeout bounds silence on the event stream; the server
	// pings well inside this window.
	clientReadTimeout = 90 * time.Second

	// dialGrace is added on top of the ring timeout so the server gets
	// to report its own timeout before the client gives up.
	dialGrace = 5 * time.Second
)

// Client drives a remote room control plane: dial, release and speak
// over HTTP, room events over a WebSocket subscription per room.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	feeds map[string]chan Event
}

// NewClient creates a client for the control plane at baseURL
// (e.g. "http://rooms.internal:8085").
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Speak blocks until playback finishes server-side, so the
		// client timeout must cover a full remark.
		httpc:  &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
		feeds:  make(map[string]chan Event),
	}
}

// post sends a JSON body and decodes nothing; callers only need the
// status. 404 is reported as errNotFound so Release can stay
// idempotent.
var errNotFound = fmt.Errorf("not found")

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Dial places the outbound leg. The server enforces the ring timeout;
// the client allows a little grace on top before giving up.
func (c *Client) Dial(ctx context.Context, req DialRequest) error {
	timeout := req.RingTimeout
	if timeout <= 0 {
		timeout = DefaultRingTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout+dialGrace)
	defer cancel()

	err := c.post(dialCtx, "/v1/rooms/"+url.PathEscape(req.RoomID)+"/dial", map[string]any{
		"number":               req.Number,
		"caller_id":            req.CallerID,
		"ring_timeout_seconds": int(timeout.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", req.Number, err)
	}
	return nil
}

// Release ends the call. A room the server no longer knows is treated
// as already released.
func (c *Client) Release(ctx context.Context, roomID string) error {
	err := c.post(ctx, "/v1/rooms/"+url.PathEscape(roomID)+"/release", struct{}{})
	if err == errNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release %s: %w", roomID, err)
	}
	return nil
}

// Speak plays a remark. The control plane returns only once playback
// has finished, so the status channel maps the request lifecycle
// directly: Started on send, Completed/Error on response, Stopped on
// context cancellation.
func (c *Client) Speak(ctx context.Context, req SpeakRequest) (<-chan SpeakStatus, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("speak in %s: empty remark", req.RoomID)
	}

	statusCh := make(chan SpeakStatus, 4)
	go func() {
		defer close(statusCh)

		statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateStarted}

		err := c.post(ctx, "/v1/rooms/"+url.PathEscape(req.RoomID)+"/speak", map[string]any{
			"text":     req.Text,
			"voice_id": req.VoiceID,
			"language": req.Language,
		})
		switch {
		case err == nil:
			statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateCompleted}
		case ctx.Err() != nil:
			statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateStopped}
		default:
			statusCh <- SpeakStatus{RoomID: req.RoomID, State: SpeakStateError, Error: err}
		}
	}()

	return statusCh, nil
}

// Events subscribes to the room's event stream. The feed closes when
// the server ends the stream (typically on room release).
func (c *Client) Events(roomID string) <-chan Event {
	c.mu.Lock()
	if ch, ok := c.feeds[roomID]; ok {
		c.mu.Unlock()
		return ch
	}
	ch := make(chan Event, 16)
	c.feeds[roomID] = ch
	c.mu.Unlock()

	go c.streamEvents(roomID, ch)
	return ch
}

// wireEvent is the stream's frame format.
type wireEvent struct {
	Kind        string    `json:"kind"`
	Participant string    `json:"participant"`
	Text        string    `json:"text"`
	At          time.Time `json:"at"`
}

func (w wireEvent) toEvent(roomID string) (Event, bool) {
	var kind EventKind
	switch w.Kind {
	case "participant_joined":
		kind = EventParticipantJoined
	case "participant_left":
		kind = EventParticipantLeft
	case "utterance":
		kind = EventUtterance
	default:
		return Event{}, false
	}

	at := w.At
	if at.IsZero() {
		at = time.Now()
	}
	return Event{
		Kind:        kind,
		RoomID:      roomID,
		Participant: w.Participant,
		Text:        w.Text,
		At:          at,
	}, true
}

func (c *Client) streamEvents(roomID string, ch chan<- Event) {
	defer func() {
		c.mu.Lock()
		delete(c.feeds, roomID)
		c.mu.Unlock()
		close(ch)
	}()

	wsURL := websocketURL(c.baseURL) + "/v1/rooms/" + url.PathEscape(roomID) + "/events"
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		c.logger.Error("[Rooms] Event stream dial failed",
			"room", roomID,
			"error", err,
		)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(clientReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(clientReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	c.logger.Debug("[Rooms] Event stream connected", "room", roomID)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(clientReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("[Rooms] Event stream read error",
					"room", roomID,
					"error", err,
				)
			}
			return
		}

		var msg wireEvent
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("[Rooms] Unparseable event frame",
				"room", roomID,
				"error", err,
			)
			continue
		}

		ev, ok := msg.toEvent(roomID)
		if !ok {
			continue
		}

		select {
		case ch <- ev:
		default:
			c.logger.Warn("[Rooms] Event dropped, feed buffer full",
				"room", roomID,
				"kind", ev.Kind.String(),
			)
		}
	}
}

// websocketURL converts the HTTP base URL to its ws(s) counterpart.
func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
