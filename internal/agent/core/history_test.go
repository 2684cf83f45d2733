package core

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCleanResultTruncatesLongText(t *testing.T) {
	p := DefaultHistoryPolicy()
	long := strings.Repeat("x", 5000)
	got := p.CleanResult(long)
	if len(got) != 2000+3 {
		t.Errorf("len = %d, want 2003", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got[len(got)-10:])
	}
}

func TestCleanResultTruncatesOnRuneBoundary(t *testing.T) {
	p := DefaultHistoryPolicy()
	// é is two bytes; an odd boundary would split one in half
	long := strings.Repeat("x", 1999) + strings.Repeat("é", 500)
	got := p.CleanResult(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated result is not valid UTF-8: %q", got[1995:2005])
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis")
	}
	if len(got) > 2000+3 {
		t.Errorf("len = %d, want at most 2003", len(got))
	}
}

func TestCleanResultShortTextUntouched(t *testing.T) {
	p := DefaultHistoryPolicy()
	if got := p.CleanResult("fine as is"); got != "fine as is" {
		t.Errorf("got %q", got)
	}
}

func TestCleanResultDegenerateResponse(t *testing.T) {
	p := DefaultHistoryPolicy()
	r := "I found something. However, please provide more information about the topic. " +
		"Could you clarify the scope? Also, could you specify a timeframe? " +
		"I need more details before continuing."
	got := p.CleanResult(r)
	if !strings.Contains(got, "[truncated: repetitive response]") {
		t.Errorf("degenerate response not truncated: %q", got)
	}
	if !strings.HasPrefix(got, "I found something.") {
		t.Errorf("opening sentences lost: %q", got)
	}
}

func TestCleanResultTwoMatchesPass(t *testing.T) {
	p := DefaultHistoryPolicy()
	r := "Please provide more information. Could you clarify that?"
	if got := p.CleanResult(r); strings.Contains(got, "[truncated") {
		t.Errorf("two matches should not trigger truncation: %q", got)
	}
}

func TestBuildContextShortHistory(t *testing.T) {
	p := DefaultHistoryPolicy()
	steps := []StepRecord{
		{Task: "first", Result: "r1"},
		{Task: "second", Result: "r2"},
	}
	got := p.BuildContext(steps)
	for _, want := range []string{"Step: first", "Result: r1", "Step: second", "Result: r2"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Summary of all steps") {
		t.Errorf("short history should not be summarized")
	}
}

func TestBuildContextLongHistory(t *testing.T) {
	p := DefaultHistoryPolicy()
	var steps []StepRecord
	for i := 1; i <= 7; i++ {
		steps = append(steps, StepRecord{
			Task:   fmt.Sprintf("step %d", i),
			Result: strings.Repeat("a", 3000),
		})
	}
	got := p.BuildContext(steps)

	if !strings.Contains(got, "Summary of all steps") {
		t.Fatalf("long history should open with a summary")
	}
	for i := 1; i <= 7; i++ {
		if !strings.Contains(got, fmt.Sprintf("%d. step %d", i, i)) {
			t.Errorf("summary line for step %d missing", i)
		}
	}
	// detail only for the last 3, each truncated to the character cap
	if got := strings.Count(got, "Result: "); got != 3 {
		t.Errorf("detailed results = %d, want 3", got)
	}
	if strings.Contains(got, strings.Repeat("a", 2001)) {
		t.Errorf("a detailed result escaped the character cap")
	}
	if strings.Contains(got, "Step: step 4\nResult") {
		t.Errorf("step 4 should only appear as a summary line")
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := DefaultHistoryPolicy().BuildContext(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
