package chart

import (
	"errors"
	"fmt"
)

const (
	supportColor    = "#22c55e"
	resistanceColor = "#ef4444"
	targetColor     = "#3b82f6"
	stopLossColor   = "#dc2626"
	entryZoneColor  = "#facc15"
	bullishColor    = "#16a34a"
	bearishColor    = "#b91c1c"

	defaultWidth    = 1
	emphasizedWidth = 2
	entryZoneAlpha  = 0.15
)

var (
	// ErrUnknownOverlay is returned when rendering an overlay of an unknown kind.
	ErrUnknownOverlay = errors.New("unknown overlay kind")
)

// PrimitiveShape represents the shape of a drawable primitive.
type PrimitiveShape int

const (
	HorizontalLine PrimitiveShape = iota
	Band
	Segment
)

// String stringifies the provided primitive shape.
func (s PrimitiveShape) String() string {
	switch s {
	case HorizontalLine:
		return "horizontal line"
	case Band:
		return "band"
	case Segment:
		return "segment"
	default:
		return "unknown"
	}
}

// Stroke represents the styling of a primitive.
type Stroke struct {
	Color  string  `json:"color"`
	Width  int     `json:"width"`
	Dashed bool    `json:"dashed"`
	Alpha  float64 `json:"alpha,omitempty"`
}

// Primitive represents a drawable shape handed to the renderer.
type Primitive struct {
	Shape  PrimitiveShape `json:"shape"`
	Label  string         `json:"label,omitempty"`
	Stroke Stroke         `json:"stroke"`
	Y      float64        `json:"y"`
	Y2     float64        `json:"y2"`
	From   Anchor         `json:"from"`
	To     Anchor         `json:"to"`
}

// renderOverlay maps a single overlay into its drawable primitive.
func renderOverlay(o *Overlay) (Primitive, error) {
	switch o.Kind {
	case SupportOverlay:
		return Primitive{
			Shape:  HorizontalLine,
			Label:  o.Label,
			Y:      o.Price,
			Stroke: Stroke{Color: supportColor, Width: defaultWidth, Dashed: true},
		}, nil

	case ResistanceOverlay:
		return Primitive{
			Shape:  HorizontalLine,
			Label:  o.Label,
			Y:      o.Price,
			Stroke: Stroke{Color: resistanceColor, Width: defaultWidth, Dashed: true},
		}, nil

	case TradeTargetOverlay:
		return Primitive{
			Shape:  HorizontalLine,
			Label:  o.Label,
			Y:      o.Price,
			Stroke: Stroke{Color: targetColor, Width: defaultWidth},
		}, nil

	case StopLossOverlay:
		return Primitive{
			Shape:  HorizontalLine,
			Label:  o.Label,
			Y:      o.Price,
			Stroke: Stroke{Color: stopLossColor, Width: emphasizedWidth},
		}, nil

	case EntryZoneOverlay:
		return Primitive{
			Shape:  Band,
			Label:  o.Label,
			Y:      o.Low,
			Y2:     o.High,
			Stroke: Stroke{Color: entryZoneColor, Width: defaultWidth, Alpha: entryZoneAlpha},
		}, nil

	case BullishProjectionOverlay:
		return Primitive{
			Shape:  Segment,
			From:   o.From,
			To:     o.To,
			Stroke: Stroke{Color: bullishColor, Width: defaultWidth, Dashed: true},
		}, nil

	case BearishProjectionOverlay:
		return Primitive{
			Shape:  Segment,
			From:   o.From,
			To:     o.To,
			Stroke: Stroke{Color: bearishColor, Width: defaultWidth, Dashed: true},
		}, nil

	default:
		return Primitive{}, fmt.Errorf("%w: %d", ErrUnknownOverlay, o.Kind)
	}
}

// Render maps the provided overlays into drawable primitives, preserving order.
func Render(overlays []Overlay) ([]Primitive, error) {
	primitives := make([]Primitive, 0, len(overlays))
	for idx := range overlays {
		p, err := renderOverlay(&overlays[idx])
		if err != nil {
			return nil, fmt.Errorf("rendering overlay %d: %w", idx, err)
		}

		primitives = append(primitives, p)
	}

	return primitives, nil
}
