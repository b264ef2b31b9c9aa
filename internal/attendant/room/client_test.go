package room

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClientDialPostsRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", nil)
	err := c.Dial(context.Background(), DialRequest{
		RoomID:      "room-1",
		Number:      "+46701234567",
		RingTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v, want nil", err)
	}

	if gotPath != "/v1/rooms/room-1/dial" {
		t.Errorf("request path = %q, want %q", gotPath, "/v1/rooms/room-1/dial")
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization header = %q, want %q", gotAuth, "Bearer secret")
	}
	if gotBody["number"] != "+46701234567" {
		t.Errorf("body number = %v, want %q", gotBody["number"], "+46701234567")
	}
	if gotBody["ring_timeout_seconds"] != float64(5) {
		t.Errorf("body ring_timeout_seconds = %v, want 5", gotBody["ring_timeout_seconds"])
	}
}

func TestClientReleaseTreatsGoneRoomAsReleased(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	if err := c.Release(context.Background(), "room-1"); err != nil {
		t.Errorf("Release() on unknown room error = %v, want nil", err)
	}
}

func TestClientReleaseReportsServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	err := c.Release(context.Background(), "room-1")
	if err == nil {
		t.Fatal("Release() error = nil, want server failure")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("Release() error = %q, want it to mention status 500", err.Error())
	}
}

func TestClientSpeakReportsCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	statusCh, err := c.Speak(context.Background(), SpeakRequest{RoomID: "room-1", Text: "Hej då."})
	if err != nil {
		t.Fatalf("Speak() error = %v, want nil", err)
	}

	if st := waitStatus(t, statusCh); st.State != SpeakStateStarted {
		t.Errorf("first status = %q, want %q", st.State.String(), SpeakStateStarted.String())
	}
	if st := waitStatus(t, statusCh); st.State != SpeakStateCompleted {
		t.Errorf("second status = %q, want %q", st.State.String(), SpeakStateCompleted.String())
	}
}

func TestClientSpeakReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tts backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	statusCh, err := c.Speak(context.Background(), SpeakRequest{RoomID: "room-1", Text: "Hej då."})
	if err != nil {
		t.Fatalf("Speak() error = %v, want nil", err)
	}

	if st := waitStatus(t, statusCh); st.State != SpeakStateStarted {
		t.Fatalf("first status = %q, want %q", st.State.String(), SpeakStateStarted.String())
	}
	st := waitStatus(t, statusCh)
	if st.State != SpeakStateError {
		t.Errorf("second status = %q, want %q", st.State.String(), SpeakStateError.String())
	}
	if st.Error == nil {
		t.Error("error status carries nil error, want the server failure")
	}
}

func TestClientEventsStreamsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rooms/room-1/events" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		frames := []string{
			`{"kind":"utterance","participant":"caller","text":"Hej!"}`,
			`{"kind":"something_else"}`,
			`{"kind":"participant_left","participant":"caller"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	feed := c.Events("room-1")

	ev := waitEvent(t, feed)
	if ev.Kind != EventUtterance {
		t.Errorf("first event kind = %q, want %q", ev.Kind.String(), EventUtterance.String())
	}
	if ev.Text != "Hej!" {
		t.Errorf("first event text = %q, want %q", ev.Text, "Hej!")
	}

	// The unknown frame is skipped, so the left event comes next.
	ev = waitEvent(t, feed)
	if ev.Kind != EventParticipantLeft {
		t.Errorf("second event kind = %q, want %q", ev.Kind.String(), EventParticipantLeft.String())
	}

	select {
	case _, ok := <-feed:
		if ok {
			t.Error("feed delivered an event after the stream closed, want closed channel")
		}
	case <-time.After(time.Second):
		t.Error("feed still open after the server closed the stream")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://rooms.internal:8085", "ws://rooms.internal:8085"},
		{"https://rooms.example.com", "wss://rooms.example.com"},
		{"rooms.internal:8085", "ws://rooms.internal:8085"},
	}
	for _, tt := range tests {
		if got := websocketURL(tt.base); got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
