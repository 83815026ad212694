package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testStatus() Status {
	return Status{
		Axes: []AxisStatus{
			{Label: "X", Pulses: 3200},
			{Label: "Y", Pulses: -1600},
		},
		SpeedPercent: 60,
		RateHz:       4800,
		Acceleration: 2000,
		Revolutions:  5,
	}
}

func newTestServer(enqueue EnqueueFunc) *Server {
	return NewServer(":0", NewStatusBroadcaster(), enqueue, testStatus)
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(func(string) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(st.Axes) != 2 || st.Axes[0].Label != "X" || st.Axes[0].Pulses != 3200 {
		t.Errorf("unexpected axes: %+v", st.Axes)
	}
	if st.SpeedPercent != 60 || st.RateHz != 4800 {
		t.Errorf("unexpected speed: %d%% %d Hz", st.SpeedPercent, st.RateHz)
	}
}

func TestHandleCommand_Accepted(t *testing.T) {
	var got string
	srv := newTestServer(func(name string) bool {
		got = name
		return true
	})

	for _, tc := range []struct {
		path, want string
	}{
		{"/jog/forward", "forward"},
		{"/jog/backward", "backward"},
		{"/speed/cycle", "cycle-speed"},
	} {
		req := httptest.NewRequest(http.MethodPost, tc.path, nil)
		rec := httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("POST %s: status = %d, want 202", tc.path, rec.Code)
		}
		if got != tc.want {
			t.Errorf("POST %s: enqueued %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestHandleCommand_BusyRejects(t *testing.T) {
	srv := newTestServer(func(string) bool { return false })

	req := httptest.NewRequest(http.MethodPost, "/jog/forward", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleCommand_NilEnqueue(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/speed/cycle", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleCommand_GetNotAllowed(t *testing.T) {
	srv := newTestServer(func(string) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/jog/forward", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServeIndex(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "StepDuo") {
		t.Error("index page does not mention StepDuo")
	}
}

func TestHandleStatusStream_SendsEvents(t *testing.T) {
	b := NewStatusBroadcaster()
	b.BroadcastMsg("move done: 3200 pulses")
	h := NewHandlers(b, nil, testStatus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/status/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HandleStatusStream(rec, req)
		close(done)
	}()

	// give the handler time to write the replayed event, then disconnect
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit on client disconnect")
	}

	body := rec.Body.String()
	if !strings.Contains(body, ": connected") {
		t.Error("stream missing initial comment")
	}
	if !strings.Contains(body, "move done: 3200 pulses") {
		t.Errorf("stream missing replayed event, body:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}
