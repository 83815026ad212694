package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"time"
)

// AxisStatus is one axis's cumulative pulse count.
type AxisStatus struct {
	Label  string `json:"label"`
	Pulses int64  `json:"pulses"`
}

// Status is the snapshot shown by the UI: pulse counters plus the
// current jog settings.
type Status struct {
	Axes         []AxisStatus `json:"axes"`
	SpeedPercent int          `json:"speed_percent"`
	RateHz       int          `json:"rate_hz"`
	Acceleration int          `json:"acceleration"`
	Revolutions  int          `json:"revolutions_per_move"`
	Running      bool         `json:"running"`
}

// EnqueueFunc hands a named command ("forward", "backward",
// "cycle-speed") to the jog loop. It returns false when the loop is
// busy with a previous command; the press is then rejected.
type EnqueueFunc func(name string) bool

// StatusFunc returns the current status snapshot.
type StatusFunc func() Status

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Enqueue     EnqueueFunc
	GetStatus   StatusFunc
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If enqueue is nil, command endpoints return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, enqueue EnqueueFunc, getStatus StatusFunc, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Enqueue:     enqueue,
		GetStatus:   getStatus,
		staticFS:    staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatus returns the current status snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.GetStatus == nil {
		http.Error(w, "status not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.GetStatus())
}

// HandleCommand returns a handler that enqueues the named jog command.
// Busy (a move still in progress) answers 409 Conflict.
func (h *Handlers) HandleCommand(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Enqueue == nil {
			http.Error(w, "control not configured", http.StatusServiceUnavailable)
			return
		}
		if !h.Enqueue(name) {
			http.Error(w, "move already in progress", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "command": name})
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
