package router

import (
	"strings"

	"concierge/internal/core"
)

// DecisionKind tells the dispatcher what to do with a classified query.
type DecisionKind int

const (
	// DecideSelf means no agent matched; the router answers directly.
	DecideSelf DecisionKind = iota
	// DecideSingle dispatches to exactly one agent.
	DecideSingle
	// DecideDaily fans out to every agent and merges a daily report.
	DecideDaily
)

// Decision is the outcome of classifying one query.
type Decision struct {
	Kind   DecisionKind
	Target core.Target
}

// dailyKeywords trigger the fan-out path. Checked before any
// single-agent bucket so "daily report" style requests never get
// swallowed by the banking bucket's "report"-adjacent terms.
var dailyKeywords = []string{
	"daily report",
	"today report",
	"todays report",
	"today's report",
	"daily summary",
	"today summary",
	"today's summary",
	"summary for today",
}

// bucketRules map keyword hits to a single agent. Rules are evaluated
// in order, so a query matching several buckets deterministically lands
// in the first one.
var bucketRules = []struct {
	target   core.Target
	keywords []string
}{
	{core.TargetBanking, []string{
		"bank", "balance", "spend", "spending", "merchant", "transaction",
		"subscriptions", "recurring", "charge", "debit", "credit", "rent",
		"cashflow",
	}},
	{core.TargetCalendar, []string{
		"calendar", "event", "schedule", "availability", "reminder",
		"meeting", "tomorrow", "today", "next week", "when am i free",
	}},
	{core.TargetGmail, []string{
		"gmail", "email", "inbox", "message", "tasks", "follow up",
		"subject", "from", "unread",
	}},
}

// Classify maps a free-text query onto a dispatch decision. Matching is
// case-insensitive substring containment.
func Classify(query string) Decision {
	q := strings.ToLower(query)

	for _, kw := range dailyKeywords {
		if strings.Contains(q, kw) {
			return Decision{Kind: DecideDaily}
		}
	}

	for _, rule := range bucketRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return Decision{Kind: DecideSingle, Target: rule.target}
			}
		}
	}

	return Decision{Kind: DecideSelf}
}
