package scoring

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/riddle015/riverhacks/internal/search"
)

type Severity string

const (
	SeverityRed    Severity = "Red"
	SeverityYellow Severity = "Yellow"
	SeverityGreen  Severity = "Green"
)

type Keyword struct {
	Phrase   string
	Severity Severity
}

// SeverityKeywords is checked in this order; the first phrase found in the
// text decides the severity, regardless of where it occurs in the text.
var SeverityKeywords = []Keyword{
	{"fatal", SeverityRed},
	{"shutdown", SeverityRed},
	{"evacuation", SeverityRed},
	{"fire", SeverityRed},
	{"shooting", SeverityRed},
	{"explosion", SeverityRed},
	{"major crash", SeverityRed},
	{"power outage", SeverityYellow},
	{"highway closed", SeverityYellow},
	{"road closure", SeverityYellow},
	{"severe weather", SeverityRed},
	{"flooding", SeverityRed},
	{"water main break", SeverityYellow},
	{"missing person", SeverityRed},
	{"emergency services", SeverityRed},
	{"traffic jam", SeverityGreen},
	{"minor accident", SeverityGreen},
}

// fold builds a Caser per call; Casers are not safe for concurrent use.
func fold(s string) string { return cases.Fold().String(s) }

// ClassifySeverityKeyword returns the severity of the first SeverityKeywords
// entry contained in text, case-insensitively.
func ClassifySeverityKeyword(text string) (Severity, bool) {
	t := fold(text)
	for _, k := range SeverityKeywords {
		if strings.Contains(t, k.Phrase) {
			return k.Severity, true
		}
	}
	return "", false
}

// ScoreExternalDuplicates keeps signals whose title or snippet contains at
// least two distinct whitespace-separated terms of description. Input order
// is preserved.
func ScoreExternalDuplicates(description string, signals []search.Signal) []search.Signal {
	terms := distinctTerms(description)
	if len(terms) < 2 {
		return nil
	}
	var out []search.Signal
	for _, s := range signals {
		title, snippet := fold(s.Title), fold(s.Snippet)
		matches := 0
		for _, t := range terms {
			if strings.Contains(title, t) || strings.Contains(snippet, t) {
				matches++
				if matches >= 2 {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

func distinctTerms(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range strings.Fields(fold(text)) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

type Alert struct {
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	Snippet  string   `json:"snippet,omitempty"`
	Severity Severity `json:"severity"`
}

// DetectAlerts classifies each signal by its title and snippet and keeps the
// ones that match a keyword.
func DetectAlerts(signals []search.Signal) []Alert {
	out := []Alert{}
	for _, s := range signals {
		sev, ok := ClassifySeverityKeyword(s.Title + "\n" + s.Snippet)
		if !ok {
			continue
		}
		out = append(out, Alert{Title: s.Title, Link: s.Link, Snippet: s.Snippet, Severity: sev})
	}
	return out
}
