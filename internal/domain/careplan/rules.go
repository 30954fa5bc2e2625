package careplan

import "strings"

// Rule rewrites note lines when an accepted suggestion label contains
// MatchLabel. It applies to every line containing MatchLine; Transform
// returns the line's replacement, which may be more than one line.
type Rule struct {
	Name       string
	MatchLabel string
	MatchLine  string
	Transform  func(line string) []string
}

// DefaultRules is evaluated in order; only the first rule matching a label
// fires.
var DefaultRules = []Rule{
	{
		Name:       "increase-statin",
		MatchLabel: "statin dosage",
		MatchLine:  "Atorvastatin",
		Transform:  replaceOnce("20 mg", "40 mg"),
	},
	{
		Name:       "bp-frequency",
		MatchLabel: "blood pressure medication",
		MatchLine:  "Lisinopril",
		Transform:  replaceOnce("Once daily", "Twice daily"),
	},
	{
		Name:       "dietary-frequency",
		MatchLabel: "dietary consultation",
		MatchLine:  "Dietary counseling",
		Transform:  replaceOnce("Every 2 months", "Monthly"),
	},
	{
		Name:       "schedule-follow-up",
		MatchLabel: "follow-up",
		MatchLine:  "Time Spent on APCM",
		Transform:  appendLine("        - 15 min: Follow-up appointment scheduled"),
	},
	{
		Name:       "metformin-dose",
		MatchLabel: "alternative diabetes medication",
		MatchLine:  "Metformin",
		Transform:  replaceOnce("500 mg", "1000 mg"),
	},
}

func replaceOnce(old, repl string) func(string) []string {
	return func(line string) []string {
		return []string{strings.Replace(line, old, repl, 1)}
	}
}

func appendLine(extra string) func(string) []string {
	return func(line string) []string {
		return []string{line, extra}
	}
}

// MatchRule returns the first rule whose label predicate matches label.
func MatchRule(rules []Rule, label string) (Rule, bool) {
	for _, r := range rules {
		if strings.Contains(label, r.MatchLabel) {
			return r, true
		}
	}
	return Rule{}, false
}
