// Package workflow implements the analysis workflow state machine of spec
// §4.6: stage transitions, the single-writer discipline of spec §5, the
// feedback/rerun loop, and event-bus publication of stage transitions for
// the SSE adapter and the thread store.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riskguard/analyzer/internal/agents"
	"github.com/riskguard/analyzer/internal/apperr"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/storage"
	"github.com/riskguard/analyzer/pkg/events"
	"github.com/riskguard/analyzer/pkg/observability"
)

// WorkflowTimeout bounds a whole session (spec §6.6 WORKFLOW_TIMEOUT_SECONDS=300).
const WorkflowTimeout = 300 * time.Second

// session tracks the single owner of one WorkflowState plus its
// cancellation flag (spec §5: "single-writer access... agents return
// deltas").
type session struct {
	mu     sync.Mutex
	state  model.WorkflowState
	cancel context.CancelFunc
}

// Machine is the workflow state machine. One Machine instance is shared by
// every session in the process; per-session mutable state lives in
// sessions, keyed by session id.
type Machine struct {
	planner   *agents.Planner
	collector *agents.Collector
	analyzer  *agents.Analyzer
	writer    *agents.Writer
	repo      storage.Repository
	bus       events.Bus
	logger    observability.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a Machine.
func New(planner *agents.Planner, collector *agents.Collector, analyzer *agents.Analyzer, writer *agents.Writer, repo storage.Repository, bus events.Bus, logger observability.Logger) *Machine {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Machine{
		planner: planner, collector: collector, analyzer: analyzer, writer: writer,
		repo: repo, bus: bus, logger: logger,
		sessions: make(map[string]*session),
	}
}

func (m *Machine) publish(ctx context.Context, sessionID string, evt events.EventType, stage model.Stage, payload interface{}) {
	m.bus.Publish(ctx, events.Event{
		Type: evt, SessionID: sessionID, Stage: string(stage), Payload: payload, At: time.Now(),
	})
}

// Cancel sets a session's cancellation flag, checked at every suspension
// point (spec §5 "REST DELETE /agent/analyze/{session_id}... cancellation
// of run").
func (m *Machine) Cancel(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// ActiveSessions returns the session ids currently running. Used for
// best-effort shutdown notification (spec §4.9).
func (m *Machine) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *Machine) checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return apperr.New(apperr.Cancelled, "session cancelled")
	}
	return nil
}

// Run drives one session from planning through persisting/completed (or
// failed), with no interactive feedback solicited (spec §4.6: "persisting
// requires user_feedback=='accurate' or no feedback was solicited" — the
// synchronous entry point solicits none). onSourceResult, when non-nil, is
// invoked as each provider call completes (for the SSE adapter).
func (m *Machine) Run(parent context.Context, task model.AnalysisTask, onSourceResult func(model.SourceResultEnvelope)) (*model.WorkflowState, error) {
	sessionID := task.TaskID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(parent, WorkflowTimeout)
	defer cancel()
	sessCtx, sessCancel := context.WithCancel(ctx)
	defer sessCancel()

	now := time.Now()
	state := model.WorkflowState{
		SessionID:  sessionID,
		ClientName: task.ClientName,
		INN:        task.INN,
		Notes:      task.Notes,
		Stage:      model.StagePlanning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	sess := &session{state: state, cancel: sessCancel}
	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
	}()

	return m.drive(sessCtx, sess, onSourceResult)
}

// drive runs planning -> collecting -> analyzing -> persisting -> completed,
// transitioning to failed on any terminal error, publishing a typed event
// at every stage boundary (spec §4.6).
func (m *Machine) drive(ctx context.Context, sess *session, onSourceResult func(model.SourceResultEnvelope)) (*model.WorkflowState, error) {
	sessionID := sess.state.SessionID

	if err := m.checkCancelled(ctx); err != nil {
		return m.fail(ctx, sess, err)
	}
	if sess.state.ClientName == "" {
		return m.fail(ctx, sess, apperr.New(apperr.InvalidInput, "client_name is required"))
	}

	// planning
	m.publish(ctx, sessionID, events.StageStarted, model.StagePlanning, nil)
	plan := m.planner.Plan(sess.state.ClientName, sess.state.INN, sess.state.Notes)
	sess.state.Plan = plan
	m.publish(ctx, sessionID, events.StageCompleted, model.StagePlanning, plan)

	if len(plan) == 0 {
		return m.fail(ctx, sess, apperr.New(apperr.InternalError, "planner produced an empty plan"))
	}

	// collecting
	if err := m.checkCancelled(ctx); err != nil {
		return m.fail(ctx, sess, err)
	}
	sess.state.Stage = model.StageCollecting
	m.publish(ctx, sessionID, events.StageStarted, model.StageCollecting, nil)

	result, err := m.collector.Collect(ctx, sess.state.ClientName, sess.state.INN, plan, func(env model.SourceResultEnvelope) {
		m.publish(ctx, sessionID, events.SourceResult, model.StageCollecting, env)
		if onSourceResult != nil {
			onSourceResult(env)
		}
	})
	sess.state.SourceData = result.SourceData
	sess.state.SearchResults = result.SearchResults
	sess.state.CollectionStats = result.Stats
	if err != nil {
		return m.fail(ctx, sess, err)
	}
	m.publish(ctx, sessionID, events.StageCompleted, model.StageCollecting, result.Stats)

	// analyzing
	if err := m.checkCancelled(ctx); err != nil {
		return m.fail(ctx, sess, err)
	}
	sess.state.Stage = model.StageAnalyzing
	m.publish(ctx, sessionID, events.StageStarted, model.StageAnalyzing, nil)

	report := m.analyzer.Analyze(ctx, sess.state.ClientName, sess.state.INN, sess.state.SourceData, sess.state.SearchResults, sess.state.PreviousReport, sess.state.UserComment)
	sess.state.Report = report
	m.publish(ctx, sessionID, events.ReportReady, model.StageAnalyzing, report)

	// no feedback solicited on the synchronous path: persist immediately
	return m.persist(ctx, sess)
}

func (m *Machine) persist(ctx context.Context, sess *session) (*model.WorkflowState, error) {
	sessionID := sess.state.SessionID
	sess.state.Stage = model.StagePersisting
	m.publish(ctx, sessionID, events.StageStarted, model.StagePersisting, nil)

	if _, err := m.writer.Persist(ctx, sess.state.Report); err != nil {
		return m.fail(ctx, sess, apperr.Wrap(err, apperr.StorageUnavailable, "persisting report"))
	}
	sess.state.UpdatedAt = time.Now()
	sess.state.Stage = model.StageCompleted
	if err := m.writer.Snapshot(ctx, sessionID, sess.state); err != nil {
		m.logger.Warn("thread snapshot failed after successful report persist", map[string]interface{}{"error": err.Error(), "session_id": sessionID})
	}

	m.publish(ctx, sessionID, events.SessionCompleted, model.StageCompleted, sess.state.Report)
	final := sess.state
	return &final, nil
}

func (m *Machine) fail(ctx context.Context, sess *session, cause error) (*model.WorkflowState, error) {
	sess.state.Stage = model.StageFailed
	sess.state.UpdatedAt = time.Now()
	if ctx.Err() != nil && apperr.KindOf(cause) != apperr.Cancelled {
		cause = apperr.New(apperr.WorkflowTimeout, fmt.Sprintf("workflow exceeded %s", WorkflowTimeout))
	}
	if err := m.writer.Snapshot(context.Background(), sess.state.SessionID, sess.state); err != nil {
		m.logger.Warn("thread snapshot failed after workflow failure", map[string]interface{}{"error": err.Error(), "session_id": sess.state.SessionID})
	}
	m.publish(context.Background(), sess.state.SessionID, events.SessionFailed, model.StageFailed, apperr.Envelope{Kind: apperr.KindOf(cause), Message: cause.Error()})
	final := sess.state
	return &final, cause
}

// Feedback implements the rerun loop of spec §4.6: on inaccurate/
// partially_accurate ratings with rerun_analysis=true, it re-synthesizes
// from the existing evidence (never recollecting) unless focusAreas name
// new intents, in which case a restricted collecting pass covers only
// those.
func (m *Machine) Feedback(ctx context.Context, threadID string, rating model.FeedbackRating, comment string, focusAreas []string, rerun bool) (*model.WorkflowState, error) {
	thread, err := m.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state := thread.ThreadData

	if rating == model.FeedbackAccurate || !rerun {
		state.UserFeedback = rating
		state.UserComment = comment
		if err := m.writer.Snapshot(ctx, threadID, state); err != nil {
			return nil, err
		}
		return &state, nil
	}

	if state.RetryCount+1 > model.MaxFeedbackRetries {
		state.Stage = model.StageFailed
		_ = m.writer.Snapshot(ctx, threadID, state)
		return &state, apperr.New(apperr.InternalError, "feedback retry cap exceeded")
	}

	sess := &session{state: state}
	sess.state.RetryCount++
	sess.state.UserFeedback = rating
	sess.state.UserComment = comment
	sess.state.FocusAreas = focusAreas
	sess.state.PreviousReport = sess.state.Report

	if len(focusAreas) > 0 {
		var extra []model.SearchIntent
		for _, f := range focusAreas {
			extra = append(extra, model.SearchIntent{Category: model.CategoryCustom, Query: f})
		}
		sess.state.Plan = append(sess.state.Plan, extra...)
		sess.state.Stage = model.StageCollecting
		m.publish(ctx, threadID, events.StageStarted, model.StageCollecting, nil)
		result, err := m.collector.Collect(ctx, sess.state.ClientName, sess.state.INN, extra, func(env model.SourceResultEnvelope) {
			m.publish(ctx, threadID, events.SourceResult, model.StageCollecting, env)
		})
		if err == nil {
			for k, v := range result.SourceData {
				sess.state.SourceData[k] = v
			}
			sess.state.SearchResults = append(sess.state.SearchResults, result.SearchResults...)
		}
	}

	sess.state.Stage = model.StageAnalyzing
	m.publish(ctx, threadID, events.StageStarted, model.StageAnalyzing, nil)
	report := m.analyzer.Analyze(ctx, sess.state.ClientName, sess.state.INN, sess.state.SourceData, sess.state.SearchResults, sess.state.PreviousReport, sess.state.UserComment)
	sess.state.Report = report
	m.publish(ctx, threadID, events.ReportReady, model.StageAnalyzing, report)

	return m.persist(ctx, sess)
}
