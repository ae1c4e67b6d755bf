package chart

import (
	"errors"
	"fmt"

	"github.com/dnldd/moodboard/shared"
)

// Props represents the inputs handed to the chart renderer. Key is the
// invalidation token the chart is mounted under.
type Props struct {
	History     []shared.DataPoint `json:"history"`
	Supports    []float64          `json:"supports"`
	Resistances []float64          `json:"resistances"`
	TradePlan   *shared.TradePlan  `json:"tradePlan,omitempty"`
	Key         uint64             `json:"key"`
}

// Validate asserts the props are sane.
func (p *Props) Validate() error {
	var errs error
	for idx := 1; idx < len(p.History); idx++ {
		prev := p.History[idx-1].Date
		curr := p.History[idx].Date
		if !curr.After(prev) {
			errs = errors.Join(errs, fmt.Errorf("history dates must be unique and ascending, "+
				"%s follows %s", curr.Format(shared.DayLayout), prev.Format(shared.DayLayout)))
		}
	}

	if p.TradePlan != nil {
		err := p.TradePlan.Validate()
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("invalid trade plan: %w", err))
		}
	}

	return errs
}
