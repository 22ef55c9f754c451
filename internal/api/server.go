package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/riskguard/analyzer/internal/httpcore"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/sse"
	"github.com/riskguard/analyzer/internal/storage"
	"github.com/riskguard/analyzer/internal/workflow"
	"github.com/riskguard/analyzer/pkg/observability"
)

// Publisher enqueues an AnalysisTask onto the async execution path
// (spec §4.8). Implemented by internal/queue.
type Publisher interface {
	Enqueue(ctx context.Context, task model.AnalysisTask) error
}

// Server holds the handles every handler needs. It is built once by
// internal/engine and has no package-level mutable state (spec §9 Design
// Notes: "no ambient global state; everything reachable from one
// service-context struct").
type Server struct {
	Machine    *workflow.Machine
	Repo       storage.Repository
	SSE        *sse.Adapter
	HTTPCore   *httpcore.Client
	Publisher  Publisher
	AdminToken string
	Logger     observability.Logger
}

func newTaskID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
