package scoring

import (
	"math"
	"strings"

	"crucible/internal/exec/lang"
)

// Score ranges. Each component is clamped independently; downstream
// behavioral/trust components are added by the external scoring engine.
const (
	MaxCorrectness = 40
	MaxEfficiency  = 15
	MaxStyle       = 5
)

// Correctness maps earned points onto 0..40, rounding half away from
// zero. totalPoints is floored at 1 so an empty table cannot divide by
// zero.
func Correctness(earnedPoints, totalPoints int) int {
	if totalPoints < 1 {
		totalPoints = 1
	}
	score := int(math.Round(float64(earnedPoints) / float64(totalPoints) * MaxCorrectness))
	return clamp(score, 0, MaxCorrectness)
}

// Efficiency compares the mean per-test runtime against the stored
// baseline. At or below baseline speed scores near maximum; at twice
// baseline or slower it scores zero.
func Efficiency(meanRuntimeMs, baselineMs float64) int {
	if baselineMs <= 0 {
		return 0
	}
	ratio := math.Min(2, meanRuntimeMs/baselineMs)
	score := int(math.Round(MaxEfficiency * (2 - ratio)))
	return clamp(score, 0, MaxEfficiency)
}

// placeholderMarkers flag code the author never finished.
var placeholderMarkers = []string{"TODO", "FIXME", "your code here", "not implemented"}

// functionConstructs is the per-language marker of a function-like
// construct; code without one is penalized.
func functionConstructs(l lang.Language) []string {
	switch l {
	case lang.Python:
		return []string{"def ", "lambda "}
	case lang.JavaScript, lang.TypeScript:
		return []string{"function", "=>"}
	case lang.Java:
		return []string{"void ", "static ", "public "}
	case lang.C, lang.CPP:
		return []string{"int main", "void "}
	case lang.Go:
		return []string{"func "}
	}
	return nil
}

func debugPrintMarker(l lang.Language) string {
	switch l {
	case lang.Python:
		return "print("
	case lang.JavaScript, lang.TypeScript:
		return "console.log"
	case lang.Java:
		return "System.out.println"
	case lang.C:
		return "printf"
	case lang.CPP:
		return "cout"
	case lang.Go:
		return "fmt.Println"
	}
	return ""
}

// Style is a shallow heuristic over the source text, 0..5. It starts at 5
// and loses a point per violation class.
func Style(l lang.Language, code string) int {
	score := MaxStyle
	lower := strings.ToLower(code)

	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			score--
			break
		}
	}

	hasFunction := false
	for _, construct := range functionConstructs(l) {
		if strings.Contains(code, construct) {
			hasFunction = true
			break
		}
	}
	if !hasFunction {
		score--
	}

	longLines := 0
	for _, line := range strings.Split(code, "\n") {
		if len(line) > 120 {
			longLines++
		}
	}
	if longLines > 2 {
		score--
	}

	if marker := debugPrintMarker(l); marker != "" {
		if strings.Count(code, marker) > 5 {
			score--
		}
	}

	return clamp(score, 0, MaxStyle)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
