// Package sse is the SSE streaming adapter of spec §4.9/§6.2: it subscribes
// to the workflow event bus and turns stage-transition events into the
// ordered, client-facing event sequence (start, progress, orchestrator,
// source_result, report, awaiting_feedback, result, complete, error).
package sse

import (
	"context"
	"net/http"

	ginsse "github.com/gin-contrib/sse"

	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/pkg/events"
	"github.com/riskguard/analyzer/pkg/observability"
)

// stageProgress maps a workflow stage to the `progress` event's percent
// field (spec §6.2).
var stageProgress = map[string]int{
	"planning":           10,
	"collecting":         40,
	"analyzing":          75,
	"awaiting_feedback":  90,
	"persisting":         95,
	"completed":          100,
}

// Adapter subscribes to one events.Bus and streams a single session's
// events to an http.ResponseWriter.
type Adapter struct {
	bus    events.Bus
	logger observability.Logger
}

// New builds an Adapter over bus.
func New(bus events.Bus, logger observability.Logger) *Adapter {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Adapter{bus: bus, logger: logger}
}

// Stream writes the SSE event sequence for sessionID to w until ctx is
// cancelled (client disconnect) or a terminal event (complete/error)
// fires. Client disconnect only cancels the subscription, never the
// underlying run (spec §4.9).
func (a *Adapter) Stream(ctx context.Context, w http.ResponseWriter, sessionID, clientName, inn string) {
	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	write := func(name string, data interface{}) {
		_ = ginsse.Encode(w, ginsse.Event{Event: name, Data: data})
		if canFlush {
			flusher.Flush()
		}
	}

	write("start", map[string]interface{}{"session_id": sessionID, "client_name": clientName, "inn": inn})

	done := make(chan struct{})
	var handlers []struct {
		t events.EventType
		h events.Handler
	}
	register := func(t events.EventType, h events.Handler) {
		wrapped := func(ctx context.Context, evt events.Event) error {
			if evt.SessionID != sessionID {
				return nil
			}
			return h(ctx, evt)
		}
		a.bus.Subscribe(t, wrapped)
		handlers = append(handlers, struct {
			t events.EventType
			h events.Handler
		}{t, wrapped})
	}

	register(events.StageStarted, func(ctx context.Context, evt events.Event) error {
		if percent, ok := stageProgress[evt.Stage]; ok {
			write("progress", map[string]interface{}{"percent": percent, "stage": evt.Stage})
		}
		return nil
	})
	register(events.StageCompleted, func(ctx context.Context, evt events.Event) error {
		if evt.Stage == "planning" {
			write("orchestrator", map[string]interface{}{"plan": evt.Payload})
		}
		return nil
	})
	register(events.SourceResult, func(ctx context.Context, evt events.Event) error {
		env, ok := evt.Payload.(model.SourceResultEnvelope)
		if !ok {
			return nil
		}
		write("source_result", map[string]interface{}{"source": env.Source, "status": env.Status, "duration_ms": env.DurationMS})
		return nil
	})
	register(events.ReportReady, func(ctx context.Context, evt events.Event) error {
		write("report", map[string]interface{}{"report": evt.Payload})
		return nil
	})
	register(events.AwaitingFeedback, func(ctx context.Context, evt events.Event) error {
		write("awaiting_feedback", evt.Payload)
		return nil
	})
	register(events.SessionCompleted, func(ctx context.Context, evt events.Event) error {
		write("result", map[string]interface{}{"report": evt.Payload})
		write("complete", map[string]interface{}{"session_id": sessionID})
		close(done)
		return nil
	})
	register(events.SessionFailed, func(ctx context.Context, evt events.Event) error {
		env, _ := evt.Payload.(apperr.Envelope)
		write("error", map[string]interface{}{"kind": env.Kind, "message": env.Message})
		close(done)
		return nil
	})

	defer func() {
		for _, r := range handlers {
			a.bus.Unsubscribe(r.t, r.h)
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
}

// ShutdownEvent emits a best-effort error event with kind=ServerShuttingDown
// to every live stream before the process exits (spec §4.9).
func (a *Adapter) ShutdownEvent(ctx context.Context, sessionID string) {
	a.bus.Publish(ctx, events.Event{
		Type:      events.SessionFailed,
		SessionID: sessionID,
		Payload:   apperr.Envelope{Kind: "ServerShuttingDown", Message: "server is shutting down"},
	})
}
