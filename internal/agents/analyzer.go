package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskguard/analyzer/internal/llm"
	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/scoring"
	"github.com/riskguard/analyzer/pkg/observability"
)

// reportSchema is the JSON schema the LLM cascade's generate_json call
// validates against (spec §4.7: "a JSON schema matching ClientAnalysisReport").
const reportSchema = `{
  "type": "object",
  "required": ["summary", "findings"],
  "properties": {
    "company_info": {"type": "object"},
    "legal_cases_count": {"type": "integer"},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["category", "source", "sentiment", "key_points"],
        "properties": {
          "category": {"type": "string"},
          "source": {"type": "string"},
          "sentiment": {"type": "string", "enum": ["positive", "neutral", "negative"]},
          "key_points": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "summary": {"type": "string"},
    "citations": {"type": "array", "items": {"type": "string"}},
    "recommendations": {"type": "array", "items": {"type": "string"}}
  }
}`

type llmReport struct {
	CompanyInfo     map[string]interface{} `json:"company_info"`
	LegalCasesCount int                     `json:"legal_cases_count"`
	Findings        []model.Finding         `json:"findings"`
	Summary         string                  `json:"summary"`
	Citations       []string                `json:"citations"`
	Recommendations []string                `json:"recommendations"`
}

// Analyzer synthesizes evidence into a ClientAnalysisReport via the LLM
// cascade, then overwrites risk_assessment with the deterministic scorer
// output (spec §4.7).
type Analyzer struct {
	cascade *llm.Cascade
	logger  observability.Logger
}

// NewAnalyzer builds an Analyzer.
func NewAnalyzer(cascade *llm.Cascade, logger observability.Logger) *Analyzer {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Analyzer{cascade: cascade, logger: logger}
}

// Analyze builds the final report. prevReport/userComment are non-empty
// only on a feedback rerun (spec §4.6 feedback loop): the analyzer
// re-synthesizes from the same evidence, injecting the operator's comment
// into the prompt, and never recollects data.
func (a *Analyzer) Analyze(ctx context.Context, clientName, inn string, sourceData map[string]model.SourceResultEnvelope, searchResults []model.SearchSnippet, prevReport *model.ClientAnalysisReport, userComment string) *model.ClientAnalysisReport {
	assessment := scoring.Score(sourceData, searchResults)

	prompt := buildPrompt(clientName, inn, sourceData, searchResults, prevReport, userComment)

	var parsed llmReport
	_, err := a.cascade.GenerateJSON(ctx, prompt, reportSchema, &parsed)
	if err != nil {
		a.logger.Warn("llm cascade failed to produce schema-valid report, falling back to degraded report", map[string]interface{}{"error": err.Error()})
		return degradedReport(clientName, inn, assessment, sourceData)
	}

	sources := make([]string, 0, len(sourceData))
	for name := range sourceData {
		sources = append(sources, name)
	}

	return &model.ClientAnalysisReport{
		Metadata: model.ReportMetadata{
			ClientName:   clientName,
			INN:          inn,
			AnalysisDate: time.Now(),
			SourcesUsed:  sources,
		},
		CompanyInfo:     parsed.CompanyInfo,
		LegalCasesCount: parsed.LegalCasesCount,
		RiskAssessment:  assessment,
		Findings:        parsed.Findings,
		Summary:         parsed.Summary,
		Citations:       parsed.Citations,
		Recommendations: parsed.Recommendations,
	}
}

func degradedReport(clientName, inn string, assessment model.RiskAssessment, sourceData map[string]model.SourceResultEnvelope) *model.ClientAnalysisReport {
	sources := make([]string, 0, len(sourceData))
	for name := range sourceData {
		sources = append(sources, name)
	}
	var drivers []string
	for _, f := range assessment.Factors {
		drivers = append(drivers, fmt.Sprintf("%s: %s", f.Category, f.Description))
	}
	summary := "Automated synthesis was unavailable; this is a degraded report built directly from collected evidence."
	if len(drivers) > 0 {
		summary += " Key drivers: " + strings.Join(drivers, "; ") + "."
	}
	return &model.ClientAnalysisReport{
		Metadata: model.ReportMetadata{
			ClientName:   clientName,
			INN:          inn,
			AnalysisDate: time.Now(),
			SourcesUsed:  sources,
		},
		RiskAssessment: assessment,
		Summary:        summary,
		Degraded:       true,
	}
}

func buildPrompt(clientName, inn string, sourceData map[string]model.SourceResultEnvelope, searchResults []model.SearchSnippet, prevReport *model.ClientAnalysisReport, userComment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze counterparty risk for %q", clientName)
	if inn != "" {
		fmt.Fprintf(&b, " (INN %s)", inn)
	}
	b.WriteString(".\n\nCollected evidence:\n")
	for source, env := range sourceData {
		fmt.Fprintf(&b, "- %s: status=%s", source, env.Status)
		if env.Payload != nil {
			fmt.Fprintf(&b, " payload=%v", env.Payload)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWeb search snippets:\n")
	for _, s := range searchResults {
		fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", s.Category, s.Sentiment, s.Title, s.Text)
	}
	if prevReport != nil {
		b.WriteString("\nThe operator rejected a previous draft of this report and supplied this feedback:\n")
		b.WriteString(userComment)
		b.WriteString("\nDo not request new data collection; re-synthesize from the evidence above addressing the feedback.\n")
	}
	b.WriteString("\nReturn only JSON matching the required schema.")
	return b.String()
}
