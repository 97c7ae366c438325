package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestInsightPayloadDecode(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind InsightKind
		err  bool
	}{
		{"full", `{"insights":{"score":72,"score_label":"Good","leaks":[{"category":"Food","amount":1512,"percentage":35.5}]}}`, InsightFull, false},
		{"insufficient", `{"insights":{"type":"insufficient_data","message":"Need more data","suggestion":"Add transactions"}}`, InsightInsufficientData, false},
		{"null", `{"insights":null}`, InsightAbsent, false},
		{"empty object", `{"insights":{}}`, InsightAbsent, false},
		{"missing score", `{"insights":{"summary":"hi"}}`, "", true},
		{"not an object", `{"insights":"oops"}`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp InsightsResponse
			err := json.Unmarshal([]byte(tc.body), &resp)
			if tc.err {
				if !errors.Is(err, ErrMalformedInsights) {
					t.Fatalf("expected ErrMalformedInsights, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Insights.Kind != tc.kind {
				t.Errorf("kind = %q, want %q", resp.Insights.Kind, tc.kind)
			}
		})
	}
}

func TestInsightPayloadRoundTripsInsufficient(t *testing.T) {
	p := InsightPayload{Kind: InsightInsufficientData, Insufficient: &InsufficientData{Message: "m", Suggestion: "s"}}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var back InsightPayload
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind != InsightInsufficientData || back.Insufficient.Message != "m" {
		t.Errorf("round trip lost the variant: %s", out)
	}
}

func TestPresent(t *testing.T) {
	full := InsightPayload{Kind: InsightFull, Full: &Insights{
		Score:      130,
		ScoreLabel: "Excellent",
		Goal:       &SavingsGoal{Name: "Trip", Target: Money{Cents: 5000000}, Current: Money{Cents: 1250000}, Progress: 25},
		Leaks: []SpendingLeak{
			{Category: "Food", Amount: Money{Cents: 151200}, Percentage: 35.55},
			{Category: "Fees", Amount: Money{Cents: 100}, Percentage: -3},
		},
	}}
	s := Present(full)
	if s.Kind != InsightFull || s.Score == nil {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Score.Width != 100 {
		t.Errorf("score width should clamp to 100, got %d", s.Score.Width)
	}
	if s.Goal.Progress != "25%" || s.Goal.Width != 25 || s.Goal.Target != "₱50,000.00" {
		t.Errorf("goal = %+v", s.Goal)
	}
	if s.Leaks[0].Percentage != "35.5%" && s.Leaks[0].Percentage != "35.6%" {
		t.Errorf("leak percentage = %q", s.Leaks[0].Percentage)
	}
	if s.Leaks[1].Width != 0 {
		t.Errorf("negative percentage should clamp to 0, got %d", s.Leaks[1].Width)
	}

	s = Present(InsightPayload{Kind: InsightInsufficientData, Insufficient: &InsufficientData{Message: "Need more", Suggestion: "Log expenses"}})
	if s.Kind != InsightInsufficientData || s.Message != "Need more" || s.Score != nil {
		t.Errorf("insufficient = %+v", s)
	}

	for _, p := range []InsightPayload{{}, {Kind: InsightAbsent}, {Kind: InsightFull}} {
		if got := Present(p); got.Kind != InsightAbsent {
			t.Errorf("Present(%+v).Kind = %q, want absent", p, got.Kind)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := map[float64]string{0: "0%", 25: "25%", 12.34: "12.3%", 99.96: "100%"}
	for in, want := range cases {
		if got := FormatPercent(in); got != want {
			t.Errorf("FormatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestInsightRequestKeyKeepsFieldsApart(t *testing.T) {
	a := InsightRequest{StartDate: "2025-10-01", EndDate: "x|y", Category: "z"}
	b := InsightRequest{StartDate: "2025-10-01", EndDate: "x", Category: "y|z"}
	if a.Key() == b.Key() {
		t.Errorf("distinct requests share key %s", a.Key())
	}
	if a.Key() != (InsightRequest{StartDate: "2025-10-01", EndDate: "x|y", Category: "z"}).Key() {
		t.Error("identical requests should share a key")
	}
}
