// Package analytics performs windowed aggregation, grouping and statistical
// anomaly detection over a ledger snapshot. Every call builds its report
// from scratch over an immutable input, so the engine is safe to invoke
// concurrently for different requests without locking.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"concierge/internal/core"
	"concierge/internal/ledger"
)

// RecurringScope selects how recurring charges are listed in the report.
type RecurringScope string

const (
	// RecurringAll lists every recurring charge regardless of the window.
	RecurringAll RecurringScope = "all"
	// RecurringWindowed keeps charges whose next charge date falls inside
	// the window, plus charges that announce no date at all.
	RecurringWindowed RecurringScope = "windowed"
)

// ParseRecurringScope maps a payload flag onto a scope, defaulting to
// windowed for anything unrecognized.
func ParseRecurringScope(s string) RecurringScope {
	if strings.EqualFold(strings.TrimSpace(s), string(RecurringAll)) {
		return RecurringAll
	}
	return RecurringWindowed
}

// anomalyFloor is the minimum flagging threshold in base currency units.
// It guards against false positives when the sample is small or
// low-variance.
const anomalyFloor = 500.0

// anomalyCandidates caps how many of the largest admitted records are
// considered for flagging.
const anomalyCandidates = 10

type (
	Totals struct {
		Spend float64 `json:"spend"`
		Count int     `json:"count"`
	}

	MerchantBucket struct {
		Merchant string  `json:"merchant"`
		Spend    float64 `json:"spend"`
		Count    int     `json:"count"`
	}

	CategoryBucket struct {
		Category string  `json:"category"`
		Spend    float64 `json:"spend"`
		Count    int     `json:"count"`
	}

	Anomaly struct {
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
		Merchant    string  `json:"merchant,omitempty"`
		PostedAt    string  `json:"posted_at,omitempty"`
		Account     string  `json:"account,omitempty"`
	}

	// Report is the findings structure the banking agent wraps into its
	// response envelope. Built fresh per call, never shared.
	Report struct {
		Totals     Totals                   `json:"totals"`
		ByMerchant []MerchantBucket         `json:"byMerchant"`
		ByCategory []CategoryBucket         `json:"byCategory"`
		Recurring  []ledger.RecurringCharge `json:"recurring"`
		Anomalies  []Anomaly                `json:"anomalies"`
	}
)

// Summarize filters the snapshot by window, aggregates debit spend by
// merchant and category, lists recurring charges per scope and flags
// statistical outliers. An empty or malformed snapshot yields a
// structurally valid empty report.
func Summarize(snap ledger.Snapshot, window core.TimeWindow, scope RecurringScope) Report {
	report := Report{
		ByMerchant: []MerchantBucket{},
		ByCategory: []CategoryBucket{},
		Recurring:  []ledger.RecurringCharge{},
		Anomalies:  []Anomaly{},
	}

	var (
		magnitudes []float64
		admitted   []ledger.Transaction
	)
	merchantIdx := make(map[string]int)
	categoryIdx := make(map[string]int)

	for _, t := range snap.Transactions {
		if !window.Contains(t.EffectiveTime()) || !t.IsDebit() {
			continue
		}
		amt := math.Abs(t.Amount)
		magnitudes = append(magnitudes, amt)
		admitted = append(admitted, t)

		merch := merchantKey(t)
		if i, ok := merchantIdx[merch]; ok {
			report.ByMerchant[i].Spend += amt
			report.ByMerchant[i].Count++
		} else {
			merchantIdx[merch] = len(report.ByMerchant)
			report.ByMerchant = append(report.ByMerchant, MerchantBucket{Merchant: merch, Spend: amt, Count: 1})
		}

		cat := categoryKey(t)
		if i, ok := categoryIdx[cat]; ok {
			report.ByCategory[i].Spend += amt
			report.ByCategory[i].Count++
		} else {
			categoryIdx[cat] = len(report.ByCategory)
			report.ByCategory = append(report.ByCategory, CategoryBucket{Category: cat, Spend: amt, Count: 1})
		}
	}

	// Stable sorts keep first-seen order among equal spends.
	sort.SliceStable(report.ByMerchant, func(i, j int) bool {
		return report.ByMerchant[i].Spend > report.ByMerchant[j].Spend
	})
	sort.SliceStable(report.ByCategory, func(i, j int) bool {
		return report.ByCategory[i].Spend > report.ByCategory[j].Spend
	})

	var total float64
	for _, m := range magnitudes {
		total += m
	}
	report.Totals = Totals{Spend: round2(total), Count: len(magnitudes)}

	// Thresholding runs on unrounded magnitudes; rounding is display-only.
	report.Anomalies = detectAnomalies(admitted, magnitudes)
	report.Recurring = filterRecurring(snap.Recurring, window, scope)

	for i := range report.ByMerchant {
		report.ByMerchant[i].Spend = round2(report.ByMerchant[i].Spend)
	}
	for i := range report.ByCategory {
		report.ByCategory[i].Spend = round2(report.ByCategory[i].Spend)
	}

	return report
}

// detectAnomalies flags the largest admitted records at or above
// max(mean + 2*stddev, floor). The standard deviation is the population
// deviation, taken as 0 below two samples.
func detectAnomalies(admitted []ledger.Transaction, magnitudes []float64) []Anomaly {
	anomalies := []Anomaly{}
	if len(magnitudes) == 0 {
		return anomalies
	}

	var sum float64
	for _, m := range magnitudes {
		sum += m
	}
	mean := sum / float64(len(magnitudes))

	stddev := 0.0
	if len(magnitudes) > 1 {
		var variance float64
		for _, m := range magnitudes {
			d := m - mean
			variance += d * d
		}
		stddev = math.Sqrt(variance / float64(len(magnitudes)))
	}
	threshold := math.Max(mean+2*stddev, anomalyFloor)

	candidates := append([]ledger.Transaction(nil), admitted...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return math.Abs(candidates[i].Amount) > math.Abs(candidates[j].Amount)
	})
	if len(candidates) > anomalyCandidates {
		candidates = candidates[:anomalyCandidates]
	}

	for _, t := range candidates {
		amt := math.Abs(t.Amount)
		if amt < threshold {
			continue
		}
		a := Anomaly{
			Amount:      round2(amt),
			Description: t.Description,
			Merchant:    t.MerchantName,
			Account:     t.AccountLabel,
		}
		if when := t.EffectiveTime(); !when.IsZero() {
			a.PostedAt = when.Format("2006-01-02T15:04:05Z07:00")
		}
		anomalies = append(anomalies, a)
	}
	return anomalies
}

// filterRecurring lists recurring charges for the requested scope. In the
// windowed scope, a charge without a next charge date is kept: an unknown
// schedule is not evidence the charge falls outside the window.
func filterRecurring(charges []ledger.RecurringCharge, window core.TimeWindow, scope RecurringScope) []ledger.RecurringCharge {
	out := []ledger.RecurringCharge{}
	for _, c := range charges {
		if scope == RecurringWindowed && c.NextCharge != "" {
			next, err := core.ParseTimestamp(c.NextCharge)
			if err != nil || !window.Contains(next) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func merchantKey(t ledger.Transaction) string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		return d
	}
	return "unknown"
}

func categoryKey(t ledger.Transaction) string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	if c := strings.TrimSpace(t.MerchantCategory); c != "" {
		return c
	}
	return "uncategorized"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SummaryText renders the human-readable summary sentence for a report.
func SummaryText(r Report, window core.TimeWindow, currency string) string {
	s := fmt.Sprintf("In the %s you spent %s %s across %d transactions.",
		window.Caption(), normalizeCurrency(currency), formatAmount(r.Totals.Spend), r.Totals.Count)
	if n := len(r.Anomalies); n > 0 {
		s += fmt.Sprintf(" Flagged %d potential anomalies.", n)
	}
	return s
}

// SMSText renders the shorter variant suitable for a text message.
func SMSText(r Report, window core.TimeWindow, currency string) string {
	caption := window.Caption()
	if caption != "" {
		caption = strings.ToUpper(caption[:1]) + caption[1:]
	}
	return fmt.Sprintf("%s spend %s %s; %d txns.",
		caption, normalizeCurrency(currency), formatAmount(r.Totals.Spend), r.Totals.Count)
}

func normalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return "USD"
	}
	return c
}

// formatAmount renders a magnitude with two decimals and thousands
// separators, e.g. 12345.6 -> "12,345.60".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
