package scoring

import (
	"strings"
	"testing"

	"crucible/internal/exec/lang"
)

func TestCorrectness(t *testing.T) {
	cases := []struct {
		earned, total, want int
	}{
		{3, 3, 40},
		{0, 3, 0},
		{1, 3, 13},
		{2, 3, 27},
		// A zero total floors to 1, so 5/1*40 = 200 clamps to the maximum.
		{5, 0, 40},
	}
	for _, tc := range cases {
		if got := Correctness(tc.earned, tc.total); got != tc.want {
			t.Errorf("Correctness(%d, %d) = %d, want %d", tc.earned, tc.total, got, tc.want)
		}
	}
}

func TestEfficiency(t *testing.T) {
	cases := []struct {
		mean, baseline float64
		want           int
	}{
		{1000, 2000, 15}, // twice as fast as baseline clamps to max
		{2000, 2000, 15}, // exactly baseline
		{3000, 2000, 8},  // ratio 1.5 -> 15 * 0.5 = 7.5 rounds to 8
		{4000, 2000, 0},  // 2x baseline
		{9000, 2000, 0},  // beyond 2x stays 0
		{1000, 0, 0},     // no baseline
	}
	for _, tc := range cases {
		if got := Efficiency(tc.mean, tc.baseline); got != tc.want {
			t.Errorf("Efficiency(%v, %v) = %d, want %d", tc.mean, tc.baseline, got, tc.want)
		}
	}
}

func TestStyleCleanCode(t *testing.T) {
	code := "def solve(a, b):\n    return a + b\n\nprint(solve(1, 2))\n"
	if got := Style(lang.Python, code); got != 5 {
		t.Fatalf("Style = %d, want 5", got)
	}
}

func TestStylePenalties(t *testing.T) {
	placeholder := "def solve():\n    pass  # TODO finish this\n"
	if got := Style(lang.Python, placeholder); got != 4 {
		t.Errorf("placeholder code = %d, want 4", got)
	}

	noFunction := "x = 1\ny = 2\n"
	if got := Style(lang.Python, noFunction); got != 4 {
		t.Errorf("function-free code = %d, want 4", got)
	}

	longLines := "def f():\n" + strings.Repeat("    x = '"+strings.Repeat("a", 150)+"'\n", 3)
	if got := Style(lang.Python, longLines); got != 4 {
		t.Errorf("long-lined code = %d, want 4", got)
	}

	noisy := "def f():\n" + strings.Repeat("    print('debug')\n", 8)
	if got := Style(lang.Python, noisy); got != 4 {
		t.Errorf("debug-heavy code = %d, want 4", got)
	}
}

func TestStyleFloorsAtZero(t *testing.T) {
	awful := "TODO\n" + strings.Repeat("print('"+strings.Repeat("x", 150)+"')\n", 8)
	got := Style(lang.Python, awful)
	if got < 0 || got > 2 {
		t.Fatalf("Style = %d, want small and non-negative", got)
	}
}

func TestLocalFinalizeSumsComponents(t *testing.T) {
	result := LocalFinalize(FinalizeRequest{
		Components: Components{Correctness: 40, Efficiency: 15, Style: 5},
	})
	if result.SubmissionScore != 60 {
		t.Fatalf("score = %d, want 60", result.SubmissionScore)
	}
	if result.TrustLevel != "unverified" {
		t.Fatalf("trust level = %q", result.TrustLevel)
	}
}
