// Package scoring implements the deterministic risk scorer from spec §4.5:
// a pure function of collected evidence to a 0-100 score, level, and factor
// list. It has no dependency on the HTTP core, storage, or LLM cascade.
package scoring

import (
	"fmt"
	"math"

	"github.com/riskguard/analyzer/internal/model"
)

// Category weights and caps, spec §4.5 / §6.6.
const (
	legalWeight      = 0.35
	legalMaxRaw      = 40.0
	financialWeight  = 0.30
	financialMaxRaw  = 30.0
	reputationWeight = 0.20
	reputationMaxRaw = 20.0
	regulatoryWeight = 0.15
	regulatoryMaxRaw = 15.0

	maxPossible = legalMaxRaw + financialMaxRaw + reputationMaxRaw + regulatoryMaxRaw // 105
)

// Risk level thresholds, invariant 1 of spec §3.
const (
	thresholdMedium   = 25
	thresholdHigh     = 50
	thresholdCritical = 75
)

// LevelForScore derives the risk level strictly from score per spec §3.
func LevelForScore(score int) model.RiskLevel {
	switch {
	case score < thresholdMedium:
		return model.RiskLow
	case score < thresholdHigh:
		return model.RiskMedium
	case score < thresholdCritical:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}

// Score computes the RiskAssessment from the source envelopes and annotated
// search snippets a collecting pass produced. It is deterministic: for
// identical inputs it always returns identical output (spec §4.5, testable
// property 1/2 of spec §8).
func Score(sourceData map[string]model.SourceResultEnvelope, searchResults []model.SearchSnippet) model.RiskAssessment {
	var factors []model.RiskFactor

	legalRaw, legalFactor := scoreLegal(sourceData)
	if legalFactor != nil {
		factors = append(factors, *legalFactor)
	}
	financialRaw, financialFactor := scoreFinancial(sourceData)
	if financialFactor != nil {
		factors = append(factors, *financialFactor)
	}
	reputationRaw, reputationFactor := scoreReputation(searchResults)
	if reputationFactor != nil {
		factors = append(factors, *reputationFactor)
	}
	regulatoryRaw, regulatoryFactor := scoreRegulatory(sourceData)
	if regulatoryFactor != nil {
		factors = append(factors, *regulatoryFactor)
	}

	raw := legalRaw + financialRaw + reputationRaw + regulatoryRaw
	final := int(math.Round(raw / maxPossible * 100))
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return model.RiskAssessment{
		Score:   final,
		Level:   LevelForScore(final),
		Factors: factors,
	}
}

func payloadMap(env model.SourceResultEnvelope) map[string]interface{} {
	if env.Status != model.EnvelopeSuccess && env.Status != model.EnvelopePartial {
		return nil
	}
	m, _ := env.Payload.(map[string]interface{})
	return m
}

func intFromPayload(m map[string]interface{}, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func boolFromPayload(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func stringFromPayload(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// scoreLegal derives a raw contribution from the court-case provider's
// case count and recency flag (spec §4.5 "From court-case counts and their
// recency").
func scoreLegal(sourceData map[string]model.SourceResultEnvelope) (float64, *model.RiskFactor) {
	env, ok := sourceData["court"]
	if !ok {
		return 0, nil
	}
	m := payloadMap(env)
	count, _ := intFromPayload(m, "case_count")
	if count == 0 {
		return 0, nil
	}
	recentlyActive := boolFromPayload(m, "has_recent_cases")

	raw := math.Min(float64(count)*4, legalMaxRaw*0.7)
	if recentlyActive {
		raw = math.Min(raw*1.4, legalMaxRaw)
	}
	raw = math.Min(raw, legalMaxRaw)

	factor := &model.RiskFactor{
		Category:     "legal",
		Description:  fmt.Sprintf("%d court case(s) on record", count),
		Contribution: raw,
	}
	return raw, factor
}

// scoreFinancial derives a raw contribution from registry status and
// analytics flags (spec §4.5).
func scoreFinancial(sourceData map[string]model.SourceResultEnvelope) (float64, *model.RiskFactor) {
	var raw float64
	var descriptions []string

	if env, ok := sourceData["registry"]; ok {
		m := payloadMap(env)
		status := stringFromPayload(m, "status")
		switch status {
		case "bankrupt":
			raw += financialMaxRaw * 0.8
			descriptions = append(descriptions, "registry status: bankrupt")
		case "liquidated":
			raw += financialMaxRaw * 0.6
			descriptions = append(descriptions, "registry status: liquidated")
		case "active":
			// no contribution
		}
	}
	if env, ok := sourceData["analytics"]; ok {
		m := payloadMap(env)
		if boolFromPayload(m, "financial_distress_flag") {
			raw += financialMaxRaw * 0.3
			descriptions = append(descriptions, "analytics: financial distress flag")
		}
	}
	if raw == 0 {
		return 0, nil
	}
	raw = math.Min(raw, financialMaxRaw)
	return raw, &model.RiskFactor{
		Category:     "financial",
		Description:  joinDescriptions(descriptions),
		Contribution: raw,
	}
}

// scoreReputation derives a raw contribution from the mean sentiment of
// collected web-search snippets (spec §4.5).
func scoreReputation(searchResults []model.SearchSnippet) (float64, *model.RiskFactor) {
	if len(searchResults) == 0 {
		return 0, nil
	}
	var negative, positive int
	for _, s := range searchResults {
		switch s.Sentiment {
		case model.SentimentNegative:
			negative++
		case model.SentimentPositive:
			positive++
		}
	}
	total := len(searchResults)
	negRatio := float64(negative) / float64(total)
	posRatio := float64(positive) / float64(total)
	net := negRatio - posRatio // -1..1, positive net means more negative than positive
	if net <= 0 {
		return 0, nil
	}
	raw := math.Min(net*reputationMaxRaw*2, reputationMaxRaw)
	return raw, &model.RiskFactor{
		Category:     "reputation",
		Description:  fmt.Sprintf("%d/%d search snippets negative", negative, total),
		Contribution: raw,
	}
}

// scoreRegulatory derives a raw contribution from registry-reported
// sanctions/tax-debt flags (spec §4.5).
func scoreRegulatory(sourceData map[string]model.SourceResultEnvelope) (float64, *model.RiskFactor) {
	env, ok := sourceData["registry"]
	if !ok {
		return 0, nil
	}
	m := payloadMap(env)
	var raw float64
	var descriptions []string
	if boolFromPayload(m, "sanctioned") {
		raw += regulatoryMaxRaw * 0.7
		descriptions = append(descriptions, "sanctions list match")
	}
	if boolFromPayload(m, "terrorist_list") {
		raw += regulatoryMaxRaw * 0.9
		descriptions = append(descriptions, "terrorist/extremist list match")
	}
	if boolFromPayload(m, "tax_debt") {
		raw += regulatoryMaxRaw * 0.3
		descriptions = append(descriptions, "outstanding tax debt marker")
	}
	if raw == 0 {
		return 0, nil
	}
	raw = math.Min(raw, regulatoryMaxRaw)
	return raw, &model.RiskFactor{
		Category:     "regulatory",
		Description:  joinDescriptions(descriptions),
		Contribution: raw,
	}
}

func joinDescriptions(d []string) string {
	switch len(d) {
	case 0:
		return ""
	case 1:
		return d[0]
	default:
		out := d[0]
		for _, s := range d[1:] {
			out += "; " + s
		}
		return out
	}
}
