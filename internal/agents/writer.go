package agents

import (
	"context"

	"github.com/google/uuid"

	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/storage"
	"github.com/riskguard/analyzer/pkg/observability"
)

// Writer persists the final report and a thread snapshot (spec §4.7). PDF
// rendering is an external collaborator out of scope (spec §1 Non-goals).
type Writer struct {
	repo   storage.Repository
	logger observability.Logger
}

// NewWriter builds a Writer.
func NewWriter(repo storage.Repository, logger observability.Logger) *Writer {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Writer{repo: repo, logger: logger}
}

// Persist writes the StoredReport (reports space) and returns its id.
func (w *Writer) Persist(ctx context.Context, report *model.ClientAnalysisReport) (string, error) {
	reportID := uuid.NewString()
	now := report.Metadata.AnalysisDate
	stored := model.StoredReport{
		ReportID:   reportID,
		INN:        report.Metadata.INN,
		ClientName: report.Metadata.ClientName,
		ReportData: *report,
		CreatedAt:  now,
		ExpiresAt:  now.Add(model.ReportTTL),
		RiskLevel:  report.RiskAssessment.Level,
		RiskScore:  report.RiskAssessment.Score,
	}
	if err := w.repo.CreateReport(ctx, stored); err != nil {
		return "", err
	}
	return reportID, nil
}

// Snapshot writes the full WorkflowState into the threads space
// (spec §4.7 "snapshots the workflow into the threads repository").
func (w *Writer) Snapshot(ctx context.Context, threadID string, state model.WorkflowState) error {
	return w.repo.SaveThread(ctx, model.ThreadRecord{
		ThreadID:   threadID,
		ThreadData: state,
		CreatedAt:  state.CreatedAt,
		UpdatedAt:  state.UpdatedAt,
		ClientName: state.ClientName,
		INN:        state.INN,
	})
}
