package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

type InsightKind string

const (
	InsightFull             InsightKind = "full"
	InsightInsufficientData InsightKind = "insufficient_data"
	InsightAbsent           InsightKind = "absent"
)

var ErrMalformedInsights = errors.New("malformed insights payload")

type (
	// Insights is the fully populated report produced by the AI backend.
	Insights struct {
		Score      float64        `json:"score"`
		ScoreLabel string         `json:"score_label,omitempty"`
		Summary    string         `json:"summary,omitempty"`
		Goal       *SavingsGoal   `json:"goal,omitempty"`
		Leaks      []SpendingLeak `json:"leaks,omitempty"`
		ActionPlan []ActionItem   `json:"action_plan,omitempty"`
	}

	SavingsGoal struct {
		Name     string  `json:"name"`
		Target   Money   `json:"target"`
		Current  Money   `json:"current"`
		Progress float64 `json:"progress"`
	}

	SpendingLeak struct {
		Category   string  `json:"category"`
		Amount     Money   `json:"amount"`
		Percentage float64 `json:"percentage"`
		Message    string  `json:"message,omitempty"`
	}

	ActionItem struct {
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Impact      string `json:"impact,omitempty"`
	}

	InsufficientData struct {
		Message    string `json:"message"`
		Suggestion string `json:"suggestion,omitempty"`
	}
)

// InsightPayload is the insights field of a backend response. Exactly one of
// Full and Insufficient is set, according to Kind; both are nil when absent.
type InsightPayload struct {
	Kind         InsightKind
	Full         *Insights
	Insufficient *InsufficientData
}

func (p *InsightPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*p = InsightPayload{Kind: InsightAbsent}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] != '{' {
		return fmt.Errorf("%w: expected an object", ErrMalformedInsights)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInsights, err)
	}
	if len(probe) == 0 {
		return nil
	}

	var typ string
	if raw, ok := probe["type"]; ok {
		_ = json.Unmarshal(raw, &typ)
	}
	if typ == string(InsightInsufficientData) {
		var d InsufficientData
		if err := json.Unmarshal(b, &d); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInsights, err)
		}
		p.Kind = InsightInsufficientData
		p.Insufficient = &d
		return nil
	}

	if _, ok := probe["score"]; !ok {
		return fmt.Errorf("%w: missing score", ErrMalformedInsights)
	}
	var full Insights
	if err := json.Unmarshal(b, &full); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInsights, err)
	}
	p.Kind = InsightFull
	p.Full = &full
	return nil
}

func (p InsightPayload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case InsightFull:
		if p.Full != nil {
			return json.Marshal(p.Full)
		}
	case InsightInsufficientData:
		if p.Insufficient != nil {
			return json.Marshal(struct {
				Type InsightKind `json:"type"`
				InsufficientData
			}{InsightInsufficientData, *p.Insufficient})
		}
	}
	return []byte("null"), nil
}

// InsightsResponse is the body of POST /ai-insights.
type InsightsResponse struct {
	Insights        InsightPayload  `json:"insights"`
	Cached          bool            `json:"cached"`
	CacheAgeMinutes *int            `json:"cache_age_minutes,omitempty"`
	GeneratedAt     string          `json:"generated_at,omitempty"`
	DataSummary     json.RawMessage `json:"data_summary,omitempty"`
}

// InsightRequest selects the period and category to analyse. Empty fields
// mean the current calendar month and every category.
type InsightRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Key identifies identical requests for deduplication. Fields are quoted so
// no field value can spill into its neighbour.
func (r InsightRequest) Key() string {
	return strconv.Quote(r.StartDate) + strconv.Quote(r.EndDate) + strconv.Quote(r.Category)
}

type (
	// InsightSummary is an InsightPayload ready to draw.
	InsightSummary struct {
		Kind       InsightKind  `json:"kind"`
		Score      *ScoreView   `json:"score,omitempty"`
		Summary    string       `json:"summary,omitempty"`
		Goal       *GoalView    `json:"goal,omitempty"`
		Leaks      []LeakView   `json:"leaks,omitempty"`
		ActionPlan []ActionItem `json:"action_plan,omitempty"`
		Message    string       `json:"message,omitempty"`
		Suggestion string       `json:"suggestion,omitempty"`
	}

	ScoreView struct {
		Value string `json:"value"`
		Label string `json:"label,omitempty"`
		Width int    `json:"width"`
	}

	GoalView struct {
		Name     string `json:"name"`
		Target   string `json:"target"`
		Current  string `json:"current"`
		Progress string `json:"progress"`
		Width    int    `json:"width"`
	}

	LeakView struct {
		Category   string `json:"category"`
		Amount     string `json:"amount"`
		Percentage string `json:"percentage"`
		Message    string `json:"message,omitempty"`
		Width      int    `json:"width"`
	}
)

// Present maps a payload onto display fields. It formats and clamps; it never
// derives numbers the backend did not send.
func Present(p InsightPayload) InsightSummary {
	switch p.Kind {
	case InsightFull:
		if p.Full == nil {
			break
		}
		in := p.Full
		s := InsightSummary{
			Kind: InsightFull,
			Score: &ScoreView{
				Value: fmt.Sprintf("%.0f", in.Score),
				Label: in.ScoreLabel,
				Width: ProgressWidth(in.Score),
			},
			Summary:    in.Summary,
			ActionPlan: in.ActionPlan,
		}
		if g := in.Goal; g != nil {
			s.Goal = &GoalView{
				Name:     g.Name,
				Target:   g.Target.String(),
				Current:  g.Current.String(),
				Progress: FormatPercent(g.Progress),
				Width:    ProgressWidth(g.Progress),
			}
		}
		for _, l := range in.Leaks {
			s.Leaks = append(s.Leaks, LeakView{
				Category:   l.Category,
				Amount:     l.Amount.String(),
				Percentage: FormatPercent(l.Percentage),
				Message:    l.Message,
				Width:      ProgressWidth(l.Percentage),
			})
		}
		return s
	case InsightInsufficientData:
		if p.Insufficient == nil {
			break
		}
		return InsightSummary{
			Kind:       InsightInsufficientData,
			Message:    p.Insufficient.Message,
			Suggestion: p.Insufficient.Suggestion,
		}
	}
	return InsightSummary{Kind: InsightAbsent}
}

// ProgressWidth clamps a percentage to a bar width in [0, 100].
func ProgressWidth(pct float64) int {
	if math.IsNaN(pct) || pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return 100
	}
	return int(math.Round(pct))
}

// FormatPercent renders one decimal place, dropping a trailing ".0".
func FormatPercent(pct float64) string {
	if math.IsNaN(pct) {
		return "0%"
	}
	s := fmt.Sprintf("%.1f", pct)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		s = s[:len(s)-2]
	}
	return s + "%"
}
