package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yuvalr-dev/librarium/internal/api/middlewares"
	"github.com/yuvalr-dev/librarium/internal/engine"
)

// QueryHandler exposes the answer engine over server-sent events.
// Answer increments arrive as "message" events, the final metadata as a
// single "debug" event, failures as an "error" event; the stream closes
// after the last event.
type QueryHandler struct {
	engine *engine.Engine
}

func NewQueryHandler(eng *engine.Engine) *QueryHandler {
	return &QueryHandler{engine: eng}
}

type queryRequest struct {
	Query       string        `json:"query"`
	History     []engine.Turn `json:"history"`
	Temperature float32       `json:"temperature"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	events, err := h.engine.Query(r.Context(), caller, engine.QueryRequest{
		WorkspaceID: workspaceID,
		Query:       req.Query,
		History:     req.History,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeAuthErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		switch {
		case ev.Metadata != nil:
			payload, err := json.Marshal(ev.Metadata)
			if err != nil {
				writeSSE(w, "error", "could not encode metadata")
			} else {
				writeSSE(w, "debug", string(payload))
			}
		case ev.Err != "":
			writeSSE(w, "error", ev.Err)
		default:
			writeSSE(w, "message", ev.Text)
		}
		flusher.Flush()
	}
}

// writeSSE emits one server-sent event. Every line of the payload
// becomes its own data line so multi-line increments survive framing;
// the blank line terminates the event.
func writeSSE(w http.ResponseWriter, event, payload string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
