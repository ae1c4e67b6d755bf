package chart

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dnldd/moodboard/shared"
)

// OverlayKind represents the kind of a chart overlay.
type OverlayKind int

const (
	SupportOverlay OverlayKind = iota
	ResistanceOverlay
	TradeTargetOverlay
	StopLossOverlay
	EntryZoneOverlay
	BullishProjectionOverlay
	BearishProjectionOverlay
)

// String stringifies the provided overlay kind.
func (k OverlayKind) String() string {
	switch k {
	case SupportOverlay:
		return "support"
	case ResistanceOverlay:
		return "resistance"
	case TradeTargetOverlay:
		return "trade target"
	case StopLossOverlay:
		return "stop loss"
	case EntryZoneOverlay:
		return "entry zone"
	case BullishProjectionOverlay:
		return "bullish projection"
	case BearishProjectionOverlay:
		return "bearish projection"
	default:
		return "unknown"
	}
}

// Anchor represents a point in chart space.
type Anchor struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Overlay represents a drawable annotation over the price series.
//
// Level overlays use Price, the entry zone uses Low and High, projections use
// From and To.
type Overlay struct {
	Kind  OverlayKind `json:"kind"`
	Label string      `json:"label,omitempty"`
	Price float64     `json:"price"`
	Low   float64     `json:"low"`
	High  float64     `json:"high"`
	From  Anchor      `json:"from"`
	To    Anchor      `json:"to"`
}

// OverlayInput represents the inputs overlay geometry is projected from.
type OverlayInput struct {
	// Last is the last real point of the series.
	Last shared.DataPoint
	// ProjectionEnd is the horizontal end of the projection segments.
	ProjectionEnd time.Time
	// Plan is the optional trade plan.
	Plan *shared.TradePlan
	// Levels are the support and resistance levels.
	Levels shared.Levels
}

// FormatPrice stringifies a price level for labels.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// levelOverlays builds the overlays for the levels of the provided kind.
func levelOverlays(levels []float64, kind shared.LevelKind) []Overlay {
	overlayKind := SupportOverlay
	if kind == shared.Resistance {
		overlayKind = ResistanceOverlay
	}

	overlays := make([]Overlay, 0, len(levels))
	for idx := range levels {
		overlays = append(overlays, Overlay{
			Kind:  overlayKind,
			Label: fmt.Sprintf("%s%d", kind.Prefix(), idx+1),
			Price: levels[idx],
		})
	}

	return overlays
}

// planOverlays builds the trade plan overlays.
func planOverlays(in *OverlayInput) []Overlay {
	plan := in.Plan
	overlays := make([]Overlay, 0, len(plan.Targets)+4)

	if in.Last.Close != nil {
		origin := Anchor{Date: in.Last.Date, Price: *in.Last.Close}
		if len(plan.Targets) > 0 {
			overlays = append(overlays, Overlay{
				Kind: BullishProjectionOverlay,
				From: origin,
				To:   Anchor{Date: in.ProjectionEnd, Price: plan.Targets[0]},
			})
		}

		overlays = append(overlays, Overlay{
			Kind: BearishProjectionOverlay,
			From: origin,
			To:   Anchor{Date: in.ProjectionEnd, Price: plan.StopLoss},
		})
	}

	overlays = append(overlays, Overlay{
		Kind:  EntryZoneOverlay,
		Label: "Entry",
		Low:   plan.EntryZone.Low,
		High:  plan.EntryZone.High,
	})

	for idx := range plan.Targets {
		overlays = append(overlays, Overlay{
			Kind:  TradeTargetOverlay,
			Label: fmt.Sprintf("TP%d: %s", idx+1, FormatPrice(plan.Targets[idx])),
			Price: plan.Targets[idx],
		})
	}

	overlays = append(overlays, Overlay{
		Kind:  StopLossOverlay,
		Label: fmt.Sprintf("SL: %s", FormatPrice(plan.StopLoss)),
		Price: plan.StopLoss,
	})

	return overlays
}

// BuildOverlays projects the provided inputs into chart overlays. The inputs
// are only read.
func BuildOverlays(in OverlayInput) []Overlay {
	var overlays []Overlay
	if in.Plan != nil {
		overlays = append(overlays, planOverlays(&in)...)
	}

	for _, kind := range []shared.LevelKind{shared.Support, shared.Resistance} {
		overlays = append(overlays, levelOverlays(in.Levels.Of(kind), kind)...)
	}

	return overlays
}
