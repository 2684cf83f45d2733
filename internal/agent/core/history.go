package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Patterns that signal a degenerate model response: the sub-agent looping on
// requests for clarification instead of doing the work. More than two matches
// across the set and we keep only the opening sentences.
var degeneratePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)please provide (me with )?(more|additional) (information|details|context)`),
	regexp.MustCompile(`(?i)could you (please )?(clarify|specify|elaborate)`),
	regexp.MustCompile(`(?i)i need more (information|details|context)`),
	regexp.MustCompile(`(?i)if you (can|could) provide`),
	regexp.MustCompile(`(?i)let me know (if|what|which)`),
}

const degenerateKeepSentences = 3

// HistoryPolicy bounds how much past-step text is fed back into prompts.
type HistoryPolicy struct {
	MaxResultChars    int // hard truncation per result
	RecentDetailSteps int // steps shown in full once history is long
	SummaryThreshold  int // history length above which summaries kick in
}

// DefaultHistoryPolicy mirrors the configured defaults.
func DefaultHistoryPolicy() HistoryPolicy {
	return HistoryPolicy{MaxResultChars: 2000, RecentDetailSteps: 3, SummaryThreshold: 5}
}

func (p HistoryPolicy) normalized() HistoryPolicy {
	d := DefaultHistoryPolicy()
	if p.MaxResultChars <= 0 {
		p.MaxResultChars = d.MaxResultChars
	}
	if p.RecentDetailSteps <= 0 {
		p.RecentDetailSteps = d.RecentDetailSteps
	}
	if p.SummaryThreshold <= 0 {
		p.SummaryThreshold = d.SummaryThreshold
	}
	return p
}

// CleanResult strips degenerate clarification loops and hard-truncates long
// results so a single step cannot flood the context window.
func (p HistoryPolicy) CleanResult(result string) string {
	p = p.normalized()
	matches := 0
	for _, re := range degeneratePatterns {
		matches += len(re.FindAllStringIndex(result, -1))
	}
	if matches > 2 {
		result = firstSentences(result, degenerateKeepSentences) + " [truncated: repetitive response]"
	}
	if len(result) > p.MaxResultChars {
		cut := p.MaxResultChars
		// back off to a rune boundary so truncation never emits invalid UTF-8
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut] + "..."
	}
	return result
}

// BuildContext renders past steps for a prompt. Short histories get full
// detail for every step; past the threshold every step keeps a one-line
// summary but only the most recent few carry their cleaned result text.
func (p HistoryPolicy) BuildContext(steps []StepRecord) string {
	p = p.normalized()
	if len(steps) == 0 {
		return ""
	}

	var b strings.Builder
	if len(steps) <= p.SummaryThreshold {
		for _, s := range steps {
			fmt.Fprintf(&b, "Step: %s\nResult: %s\n\n", s.Task, p.CleanResult(s.Result))
		}
		return b.String()
	}

	b.WriteString("Summary of all steps so far:\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, firstLine(s.Task))
	}
	b.WriteString("\nDetail of the most recent steps:\n")
	detailFrom := len(steps) - p.RecentDetailSteps
	for _, s := range steps[detailFrom:] {
		fmt.Fprintf(&b, "Step: %s\nResult: %s\n\n", s.Task, p.CleanResult(s.Result))
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// firstSentences returns the first n sentences of s, splitting on the usual
// terminators.
func firstSentences(s string, n int) string {
	count := 0
	for i, r := range s {
		switch r {
		case '.', '!', '?':
			count++
			if count >= n {
				return s[:i+1]
			}
		}
	}
	return s
}
