package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"orgguard.dev/internal/access"
	"orgguard.dev/internal/audit"
)

const streamHeartbeat = 15 * time.Second

// handleAuditStream pushes the caller's organization audit entries as Server-Sent Events.
func (a *API) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "streaming disabled")
		return
	}
	dec, ok := decisionFrom(r.Context())
	if !ok {
		a.respondErr(w, r, access.ErrInternalMisuse)
		return
	}

	rc := http.NewResponseController(w)
	// the server write timeout would cut the stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := a.stream.Subscribe(r.Context(), dec.Actor.PlatformID, dec.Actor.OrgID)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}
	// audited at handshake, not when the subscriber leaves
	if trail, ok := audit.TrailFromContext(r.Context()); ok {
		a.recorder.Flush(context.WithoutCancel(r.Context()), trail, http.StatusOK)
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: audit\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
