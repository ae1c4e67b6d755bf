package chart

import (
	"github.com/dnldd/moodboard/shared"
)

const (
	// absentValue is displayed in place of absent price fields.
	absentValue = "n/a"
)

// TooltipContent represents the hover readout of a chart point.
type TooltipContent struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// formatOptional stringifies the provided price or marks it absent.
func formatOptional(v *float64) string {
	if v == nil {
		return absentValue
	}

	return FormatPrice(*v)
}

// Tooltip returns the hover readout for the provided point. Synthetic padding
// points have no real data to show, the readout is suppressed for them.
func Tooltip(p shared.DataPoint) (TooltipContent, bool) {
	if p.IsSynthetic() {
		return TooltipContent{}, false
	}

	return TooltipContent{
		Date:   p.Date.Format(shared.DayLayout),
		Open:   formatOptional(p.Open),
		High:   formatOptional(p.High),
		Low:    formatOptional(p.Low),
		Close:  formatOptional(p.Close),
		Volume: FormatPrice(p.Volume),
	}, true
}
