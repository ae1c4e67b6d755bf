package shared

const (
	// NeutralMoodLabel is the mood label used when no mood label is provided.
	NeutralMoodLabel = "Neutral"
)

// Trends represents the index-aligned trend series backing metric sparklines,
// ordered most-recent-last.
type Trends struct {
	Price       []float64 `json:"price"`
	Mood        []float64 `json:"mood"`
	Correlation []float64 `json:"correlation"`
	Volume      []float64 `json:"volume"`
}

// Metrics represents a canonical snapshot of the dashboard metrics.
//
// A snapshot is replaced wholesale on every fetch cycle and must not be
// mutated once published.
type Metrics struct {
	Price       float64 `json:"price"`
	PriceDelta  float64 `json:"price_delta"`
	MoodScore   float64 `json:"mood_score"`
	MoodLabel   string  `json:"mood_label"`
	Correlation float64 `json:"correlation"`
	Volume      float64 `json:"volume"`
	Trends      Trends  `json:"trends"`
	HasData     bool    `json:"hasData"`
}

// EmptyTrends returns trends with empty, non-nil series.
func EmptyTrends() Trends {
	return Trends{
		Price:       []float64{},
		Mood:        []float64{},
		Correlation: []float64{},
		Volume:      []float64{},
	}
}

// EmptyMetrics returns the zeroed metrics snapshot used when no data is
// available.
func EmptyMetrics() Metrics {
	return Metrics{
		MoodLabel: NeutralMoodLabel,
		Trends:    EmptyTrends(),
	}
}

// ComputeHasData reports whether the provided price and volume constitute data.
func ComputeHasData(price float64, volume float64) bool {
	return price > 0 || volume > 0
}
