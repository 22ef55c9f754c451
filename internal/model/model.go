// Package model holds the data types shared by every layer of the analysis
// engine: tasks, workflow state, evidence envelopes, and the reports/threads
// that get persisted. Nothing in this package does I/O.
package model

import "time"

// AnalysisTask is the unit of work accepted by the API or the queue
// publisher. It is immutable except for Status once created.
type AnalysisTask struct {
	TaskID    string    `json:"task_id"`
	ClientName string   `json:"client_name"`
	INN       string    `json:"inn,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	Status    TaskStatus `json:"status"`
}

// TaskStatus is the lifecycle of an AnalysisTask processed asynchronously.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Stage is a workflow state machine stage (spec §4.6).
type Stage string

const (
	StagePlanning          Stage = "planning"
	StageCollecting        Stage = "collecting"
	StageAnalyzing         Stage = "analyzing"
	StageAwaitingFeedback  Stage = "awaiting_feedback"
	StagePersisting        Stage = "persisting"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

// MaxFeedbackRetries bounds the rerun loop (invariant 3, §3).
const MaxFeedbackRetries = 3

// SearchIntentCategory is one of the fixed evidence categories the planner
// assigns to a query.
type SearchIntentCategory string

const (
	CategoryReputation SearchIntentCategory = "reputation"
	CategoryLawsuits   SearchIntentCategory = "lawsuits"
	CategoryNews       SearchIntentCategory = "news"
	CategoryNegative   SearchIntentCategory = "negative"
	CategoryFinancial  SearchIntentCategory = "financial"
	CategoryCustom     SearchIntentCategory = "custom"
)

// SearchIntent drives one provider call.
type SearchIntent struct {
	Category SearchIntentCategory `json:"category"`
	Query    string                `json:"query"`
}

// EnvelopeStatus is the outcome of one provider call.
type EnvelopeStatus string

const (
	EnvelopeSuccess EnvelopeStatus = "success"
	EnvelopePartial EnvelopeStatus = "partial"
	EnvelopeFailed  EnvelopeStatus = "failed"
)

// SourceResultEnvelope is the uniform wrapper every provider client returns.
type SourceResultEnvelope struct {
	Source     string          `json:"source"`
	Status     EnvelopeStatus  `json:"status"`
	Payload    interface{}     `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Sentiment is the lexicon-derived label attached to a search snippet.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SearchSnippet is one web-search result annotated with sentiment.
type SearchSnippet struct {
	Source    string    `json:"source"`
	Category  SearchIntentCategory `json:"category"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Sentiment Sentiment `json:"sentiment"`
}

// CollectionStats summarizes one collecting pass.
type CollectionStats struct {
	SourcesAttempted int `json:"sources_attempted"`
	SourcesSucceeded int `json:"sources_succeeded"`
	SourcesFailed    int `json:"sources_failed"`
	DurationMS       int64 `json:"duration_ms"`
}

// RiskLevel is strictly derived from Score (invariant 1, §3).
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskFactor is one human-readable driver behind a non-zero category
// contribution.
type RiskFactor struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Contribution float64 `json:"contribution"`
}

// RiskAssessment is the scorer's output, embedded in a report.
type RiskAssessment struct {
	Score   int          `json:"score"`
	Level   RiskLevel    `json:"level"`
	Factors []RiskFactor `json:"factors"`
}

// Finding is one piece of synthesized evidence in the final report.
type Finding struct {
	Category  SearchIntentCategory `json:"category"`
	Source    string                `json:"source"`
	Sentiment Sentiment             `json:"sentiment"`
	KeyPoints []string              `json:"key_points"`
}

// ReportMetadata identifies the subject and provenance of a report.
type ReportMetadata struct {
	ClientName   string    `json:"client_name"`
	INN          string    `json:"inn,omitempty"`
	AnalysisDate time.Time `json:"analysis_date"`
	SourcesUsed  []string  `json:"sources_used"`
}

// ClientAnalysisReport is the synthesized output of one analysis run.
type ClientAnalysisReport struct {
	Metadata         ReportMetadata  `json:"metadata"`
	CompanyInfo      map[string]interface{} `json:"company_info,omitempty"`
	LegalCasesCount  int             `json:"legal_cases_count"`
	RiskAssessment   RiskAssessment  `json:"risk_assessment"`
	Findings         []Finding       `json:"findings"`
	Summary          string          `json:"summary"`
	Citations        []string        `json:"citations,omitempty"`
	Recommendations  []string        `json:"recommendations,omitempty"`
	Degraded         bool            `json:"degraded,omitempty"`
}

// FeedbackRating is the caller's verdict on a report (§6.1 POST /agent/feedback).
type FeedbackRating string

const (
	FeedbackAccurate           FeedbackRating = "accurate"
	FeedbackPartiallyAccurate  FeedbackRating = "partially_accurate"
	FeedbackInaccurate         FeedbackRating = "inaccurate"
)

// WorkflowState is the single mutable record a workflow state machine owns
// for the lifetime of one session. Only the state machine goroutine may
// mutate it; agents receive a read-only snapshot and return a delta.
type WorkflowState struct {
	SessionID  string   `json:"session_id"`
	ClientName string   `json:"client_name"`
	INN        string   `json:"inn,omitempty"`
	Notes      string   `json:"notes,omitempty"`

	Stage Stage `json:"stage"`

	Plan          []SearchIntent                   `json:"plan"`
	SourceData    map[string]SourceResultEnvelope   `json:"source_data"`
	SearchResults []SearchSnippet                   `json:"search_results"`
	CollectionStats CollectionStats                 `json:"collection_stats"`

	Report *ClientAnalysisReport `json:"report,omitempty"`

	RetryCount     int             `json:"retry_count"`
	UserFeedback   FeedbackRating  `json:"user_feedback,omitempty"`
	UserComment    string          `json:"user_comment,omitempty"`
	FocusAreas     []string        `json:"focus_areas,omitempty"`
	PreviousReport *ClientAnalysisReport `json:"previous_report,omitempty"`

	Cancelled bool `json:"cancelled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep-enough copy for handing a read-only snapshot to an
// agent: slices and maps are copied so an agent cannot mutate the original
// through an aliased reference, but payload values inside envelopes are
// shared (treated as immutable once written).
func (s *WorkflowState) Clone() *WorkflowState {
	clone := *s
	clone.Plan = append([]SearchIntent(nil), s.Plan...)
	clone.SearchResults = append([]SearchSnippet(nil), s.SearchResults...)
	clone.FocusAreas = append([]string(nil), s.FocusAreas...)
	clone.SourceData = make(map[string]SourceResultEnvelope, len(s.SourceData))
	for k, v := range s.SourceData {
		clone.SourceData[k] = v
	}
	if s.Report != nil {
		r := *s.Report
		clone.Report = &r
	}
	if s.PreviousReport != nil {
		r := *s.PreviousReport
		clone.PreviousReport = &r
	}
	return &clone
}

// StoredReport is the persisted, durable form of a report (reports space).
type StoredReport struct {
	ReportID   string                `json:"report_id" db:"report_id"`
	INN        string                `json:"inn" db:"inn"`
	ClientName string                `json:"client_name" db:"client_name"`
	ReportData ClientAnalysisReport  `json:"report_data" db:"report_data"`
	CreatedAt  time.Time             `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time             `json:"expires_at" db:"expires_at"`
	RiskLevel  RiskLevel              `json:"risk_level" db:"risk_level"`
	RiskScore  int                    `json:"risk_score" db:"risk_score"`
}

// ReportTTL is the fixed lifetime of a StoredReport (invariant 2, §3).
const ReportTTL = 30 * 24 * time.Hour

// ThreadRecord is the persisted snapshot of one analysis session.
type ThreadRecord struct {
	ThreadID   string        `json:"thread_id" db:"thread_id"`
	ThreadData WorkflowState `json:"thread_data" db:"thread_data"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
	ClientName string        `json:"client_name" db:"client_name"`
	INN        string        `json:"inn" db:"inn"`
}

// CacheEntry is one row in the cache space.
type CacheEntry struct {
	Key       string    `json:"key" db:"key"`
	Value     []byte    `json:"value" db:"value"`
	TTLEpoch  int64     `json:"ttl_epoch_seconds" db:"ttl_epoch_seconds"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Source    string    `json:"source" db:"source"`
}

// Observable reports whether the entry is still live at instant now
// (invariant 5, §3).
func (c CacheEntry) Observable(now time.Time) bool {
	return now.Unix() < c.TTLEpoch
}

// AnalysisResult is published on analysis_results (§6.3) by the queue
// consumer once a task's workflow run succeeds. A task whose run fails is
// re-enqueued and, after MaxDelivery attempts, dead-lettered; no
// AnalysisResult is published for it.
type AnalysisResult struct {
	TaskID      string                `json:"task_id"`
	Status      TaskStatus            `json:"status"`
	Report      *ClientAnalysisReport `json:"report,omitempty"`
	Error       string                `json:"error,omitempty"`
	CompletedAt time.Time             `json:"completed_at"`
}

// DeadLetter wraps a message that exhausted its broker delivery budget
// (§4.8, §6.3).
type DeadLetter struct {
	Original  interface{} `json:"original"`
	LastError string      `json:"last_error"`
	Attempts  int         `json:"attempts"`
}
