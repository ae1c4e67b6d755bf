package shared

import (
	"github.com/tidwall/gjson"
)

// LevelKind represents the type of level.
type LevelKind int

const (
	Support LevelKind = iota
	Resistance
)

// String stringifies the provided level kind.
func (l LevelKind) String() string {
	switch l {
	case Support:
		return "support"
	case Resistance:
		return "resistance"
	default:
		return "unknown"
	}
}

// Prefix returns the label prefix for levels of the provided kind.
func (l LevelKind) Prefix() string {
	switch l {
	case Support:
		return "S"
	case Resistance:
		return "R"
	default:
		return "?"
	}
}

// Levels represents the support and resistance levels of a market as ordered
// by the upstream analysis. The index of a level implies its rank (S1, S2, ...).
type Levels struct {
	Supports    []float64 `json:"supports"`
	Resistances []float64 `json:"resistances"`
}

// Of returns the levels of the provided kind.
func (l *Levels) Of(kind LevelKind) []float64 {
	switch kind {
	case Support:
		return l.Supports
	case Resistance:
		return l.Resistances
	default:
		return nil
	}
}

// ParseFloats parses the numeric elements of the provided json array, skipping
// anything that is not a number.
func ParseFloats(data gjson.Result) []float64 {
	if !data.IsArray() {
		return []float64{}
	}

	arr := data.Array()
	values := make([]float64, 0, len(arr))
	for idx := range arr {
		if arr[idx].Type != gjson.Number {
			continue
		}
		values = append(values, arr[idx].Float())
	}

	return values
}

// ParseLevels parses support and resistance levels from the provided json data.
func ParseLevels(data gjson.Result) Levels {
	return Levels{
		Supports:    ParseFloats(data.Get("supports")),
		Resistances: ParseFloats(data.Get("resistances")),
	}
}
