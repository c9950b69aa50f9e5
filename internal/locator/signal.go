package locator

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signal extracts the ranking metric from one candidate's markup.
type Signal interface {
	Name() string
	// Extract returns the metric and whether a label carrying it was found.
	// A missing label, or one without digits, yields (0, false).
	Extract(sel *goquery.Selection) (int, bool)
}

// suffixSignal reads the first span whose text ends with a fixed word,
// such as "12 feedback" on the listing or "1,204 reach" on the dashboard.
type suffixSignal struct {
	name   string
	suffix *regexp.Regexp
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

func newSuffixSignal(word string) *suffixSignal {
	return &suffixSignal{
		name:   word,
		suffix: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word) + `$`),
	}
}

// FeedbackSignal ranks listing entries by their public feedback count.
func FeedbackSignal() Signal { return newSuffixSignal("feedback") }

// ReachSignal ranks dashboard entries by their reach count.
func ReachSignal() Signal { return newSuffixSignal("reach") }

// NewSignal resolves a signal by its configured name.
func NewSignal(name string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "feedback", "":
		return FeedbackSignal(), nil
	case "reach":
		return ReachSignal(), nil
	default:
		return nil, fmt.Errorf("unknown ranking signal %q", name)
	}
}

func (s *suffixSignal) Name() string { return s.name }

func (s *suffixSignal) Extract(sel *goquery.Selection) (int, bool) {
	label := sel.Find("span").FilterFunction(func(_ int, span *goquery.Selection) bool {
		return s.suffix.MatchString(strings.TrimSpace(span.Text()))
	}).First()
	if label.Length() == 0 {
		return 0, false
	}

	digits := nonDigits.ReplaceAllString(label.Text(), "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) {
		// Counts too large for an int still rank above everything else.
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}
