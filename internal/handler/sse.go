package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// streamSSE runs a server-sent-events response. attach wires emit into
// a live subscription and returns its disposer; emissions are JSON
// encoded, one event per snapshot. A slow client drops the oldest
// buffered snapshot, never the subscription.
func streamSSE(w http.ResponseWriter, r *http.Request, logger *zap.Logger, attach func(ctx context.Context, emit func(v any)) (func(), error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	events := make(chan []byte, 16)
	emit := func(v any) {
		b, err := json.Marshal(v)
		if err != nil {
			logger.Error("sse: marshal failed", zap.Error(err))
			return
		}
		for {
			select {
			case events <- b:
				return
			default:
				select {
				case <-events:
				default:
				}
			}
		}
	}

	unsub, err := attach(ctx, emit)
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-events:
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
