package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nordvoice/attendant/internal/attendant/session"
)

type fakeProvider struct {
	active  []session.Info
	total   int
	reasons map[string]int
}

func (p *fakeProvider) Active() []session.Info            { return p.active }
func (p *fakeProvider) TotalStarted() int                 { return p.total }
func (p *fakeProvider) TerminationCounts() map[string]int { return p.reasons }

func testServer(t *testing.T, provider SessionProvider) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer("127.0.0.1:0", "attendant", "1.0.0", provider)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, &fakeProvider{})

	var body map[string]any
	resp := getJSON(t, ts.URL+"/api/v1/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf(`body["status"] = %v, want "ok"`, body["status"])
	}
	if body["agent"] != "attendant" {
		t.Errorf(`body["agent"] = %v, want "attendant"`, body["agent"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	provider := &fakeProvider{
		active: []session.Info{{ID: "call-1", Phase: "Active"}},
		total:  7,
		reasons: map[string]int{
			"natural":      4,
			"max_duration": 2,
		},
	}
	_, ts := testServer(t, provider)

	var body map[string]any
	getJSON(t, ts.URL+"/api/v1/stats", &body)

	if got := body["active_sessions"].(float64); got != 1 {
		t.Errorf("active_sessions = %v, want 1", got)
	}
	if got := body["total_sessions"].(float64); got != 7 {
		t.Errorf("total_sessions = %v, want 7", got)
	}
	terminations := body["terminations"].(map[string]any)
	if got := terminations["natural"].(float64); got != 4 {
		t.Errorf("terminations.natural = %v, want 4", got)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{
		active: []session.Info{
			{ID: "call-1", RoomID: "room-1", Direction: "inbound", Persona: "Robert", Phase: "Active", StartedAt: now},
			{ID: "call-2", RoomID: "room-2", Direction: "outbound", Phase: "Closing", StartedAt: now},
		},
	}
	_, ts := testServer(t, provider)

	var body []map[string]any
	getJSON(t, ts.URL+"/api/v1/sessions", &body)

	if len(body) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(body))
	}
	if body[0]["call_id"] != "call-1" || body[0]["persona"] != "Robert" {
		t.Errorf("sessions[0] = %v", body[0])
	}
	if body[1]["direction"] != "outbound" {
		t.Errorf("sessions[1].direction = %v, want outbound", body[1]["direction"])
	}
}

func TestSessionsRejectsPost(t *testing.T) {
	_, ts := testServer(t, &fakeProvider{})

	resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestShutdownEndpoint(t *testing.T) {
	s, ts := testServer(t, &fakeProvider{})

	fired := make(chan struct{}, 1)
	s.SetShutdownFunc(func() { fired <- struct{}{} })

	resp, err := http.Post(ts.URL+"/api/v1/shutdown", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Error("shutdown func was not invoked")
	}

	// GET must not trigger anything.
	getResp := getJSON(t, ts.URL+"/api/v1/shutdown", nil)
	if getResp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", getResp.StatusCode)
	}
}
