package shared

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// EntryZone represents the price band a trade plan suggests entering in.
type EntryZone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// TradePlan represents a suggested trade computed upstream.
type TradePlan struct {
	Action    string    `json:"action"`
	EntryZone EntryZone `json:"entry_zone"`
	// Targets are rendered in the given order, they are not necessarily sorted.
	Targets  []float64 `json:"targets"`
	StopLoss float64   `json:"stop_loss"`
}

// Validate asserts the trade plan is sane.
func (p *TradePlan) Validate() error {
	var errs error
	if p.EntryZone.Low > p.EntryZone.High {
		errs = errors.Join(errs, fmt.Errorf("entry zone low %v exceeds high %v",
			p.EntryZone.Low, p.EntryZone.High))
	}
	if p.StopLoss < 0 {
		errs = errors.Join(errs, fmt.Errorf("stop loss cannot be negative"))
	}

	return errs
}

// Analysis represents the upstream price analysis of a market.
type Analysis struct {
	Levels    Levels
	TradePlan *TradePlan
}

// ParseTradePlan parses a trade plan from the provided json data. It returns
// nil when no usable plan is present.
func ParseTradePlan(data gjson.Result) (*TradePlan, error) {
	if !data.IsObject() {
		return nil, nil
	}

	plan := &TradePlan{
		Action: data.Get("action").String(),
		EntryZone: EntryZone{
			Low:  data.Get("entry_zone.low").Float(),
			High: data.Get("entry_zone.high").Float(),
		},
		Targets:  ParseFloats(data.Get("targets")),
		StopLoss: data.Get("stop_loss").Float(),
	}

	err := plan.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating trade plan: %w", err)
	}

	return plan, nil
}

// ParseAnalysis parses the upstream analysis from the provided json data.
// Levels are parsed independently of the trade plan: the returned analysis
// is always usable, a non-nil error reports an invalid trade plan that was
// discarded.
func ParseAnalysis(data gjson.Result) (*Analysis, error) {
	analysis := &Analysis{Levels: ParseLevels(data)}

	plan, err := ParseTradePlan(data.Get("trade_plan"))
	if err != nil {
		return analysis, err
	}

	analysis.TradePlan = plan

	return analysis, nil
}
