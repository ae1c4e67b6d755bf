package chart

import (
	"errors"

	"github.com/dnldd/moodboard/shared"
)

const (
	// domainLowFactor scales the lowest real low into the domain floor.
	domainLowFactor = 0.95
	// domainHighFactor scales the highest real high or target into the domain ceiling.
	domainHighFactor = 1.05
)

var (
	// ErrEmptyDomain is returned when no real price extremum exists to derive
	// a rendering domain from.
	ErrEmptyDomain = errors.New("no real price data to derive a domain from")
)

// BuildPaddedSeries appends paddingCount synthetic points to the provided
// history, each dated one calendar day after the previous point. The padding
// reserves horizontal space for projections. An empty history is never padded.
func BuildPaddedSeries(history []shared.DataPoint, paddingCount int) []shared.DataPoint {
	if len(history) == 0 {
		return []shared.DataPoint{}
	}
	if paddingCount < 0 {
		paddingCount = 0
	}

	series := make([]shared.DataPoint, 0, len(history)+paddingCount)
	series = append(series, history...)

	date := shared.CalendarDay(history[len(history)-1].Date)
	for range paddingCount {
		date = date.AddDate(0, 0, 1)
		series = append(series, shared.NewSyntheticDataPoint(date))
	}

	return series
}

// Domain represents the vertical price domain of a chart.
type Domain struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ComputeDomain derives the rendering domain from the real points of the
// provided history and the provided targets. Synthetic points and absent
// extremes are ignored.
func ComputeDomain(history []shared.DataPoint, targets []float64) (Domain, error) {
	var low, high float64
	var found bool

	for idx := range history {
		point := history[idx]
		if point.Low == nil || point.High == nil {
			continue
		}

		if !found {
			low, high = *point.Low, *point.High
			found = true
			continue
		}

		low = min(low, *point.Low)
		high = max(high, *point.High)
	}

	if !found {
		return Domain{}, ErrEmptyDomain
	}

	for idx := range targets {
		high = max(high, targets[idx])
	}

	return Domain{
		Low:  low * domainLowFactor,
		High: high * domainHighFactor,
	}, nil
}

// LastReal returns the last real point of the provided series.
func LastReal(series []shared.DataPoint) (shared.DataPoint, bool) {
	for idx := len(series) - 1; idx >= 0; idx-- {
		if !series[idx].IsSynthetic() {
			return series[idx], true
		}
	}

	return shared.DataPoint{}, false
}
