// Package validate parses and range-checks raw text for each input stage.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/companion/internal/domain"
)

// Kind classifies a validation failure for user messaging.
type Kind string

const (
	KindEmpty                Kind = "empty"
	KindNotANumber           Kind = "not_a_number"
	KindNotAnInteger         Kind = "not_an_integer"
	KindOutOfRange           Kind = "out_of_range"
	KindMalformedStressInput Kind = "malformed_stress_input"
)

// StressScoreCount is the number of scores expected in stress input.
const StressScoreCount = 3

// Stress score bounds.
const (
	MinStressScore = 1
	MaxStressScore = 10
)

// ValidationError reports why input was rejected. It is always recoverable.
type ValidationError struct {
	Kind  Kind
	Input string
	Min   float64
	Max   float64
}

func (e *ValidationError) Error() string {
	if e.Kind == KindOutOfRange {
		return fmt.Sprintf("%s: %q not in [%g, %g]", e.Kind, e.Input, e.Min, e.Max)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Input)
}

// Weight parses a weight in kilograms.
func Weight(text string) (float64, error) {
	return number(text, domain.MinWeightKg, domain.MaxWeightKg)
}

// Height parses a height in centimetres.
func Height(text string) (float64, error) {
	return number(text, domain.MinHeightCm, domain.MaxHeightCm)
}

// Age parses an integer age in years.
func Age(text string) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &ValidationError{Kind: KindEmpty, Input: text}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		if _, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return 0, &ValidationError{Kind: KindNotAnInteger, Input: text}
		}
		return 0, &ValidationError{Kind: KindNotANumber, Input: text}
	}
	if n < domain.MinAge || n > domain.MaxAge {
		return 0, &ValidationError{Kind: KindOutOfRange, Input: text, Min: domain.MinAge, Max: domain.MaxAge}
	}
	return n, nil
}

// Task trims a task description and rejects empty input.
func Task(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", &ValidationError{Kind: KindEmpty, Input: text}
	}
	return s, nil
}

// StressScores parses "a,b,c": exactly three integers in [1,10].
// Any deviation is a single KindMalformedStressInput error.
func StressScores(text string) ([]int, error) {
	malformed := &ValidationError{Kind: KindMalformedStressInput, Input: text}

	parts := strings.Split(text, ",")
	if len(parts) != StressScoreCount {
		return nil, malformed
	}
	scores := make([]int, 0, StressScoreCount)
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < MinStressScore || n > MaxStressScore {
			return nil, malformed
		}
		scores = append(scores, n)
	}
	return scores, nil
}

// Average returns the arithmetic mean of scores.
func Average(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

func number(text string, lo, hi float64) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &ValidationError{Kind: KindEmpty, Input: text}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Kind: KindNotANumber, Input: text}
	}
	if v < lo || v > hi {
		return 0, &ValidationError{Kind: KindOutOfRange, Input: text, Min: lo, Max: hi}
	}
	return v, nil
}
