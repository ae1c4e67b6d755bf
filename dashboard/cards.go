package dashboard

import (
	"fmt"
	"math"

	"github.com/dnldd/moodboard/shared"
)

const (
	// NoDataValue is displayed in place of a metric value when the snapshot
	// carries no data.
	NoDataValue = "No Data"

	PriceTitle       = "Price"
	MoodTitle        = "Market Mood"
	CorrelationTitle = "Mood/Price Correlation"
	VolumeTitle      = "News Volume"
)

// Card represents the display model of a single dashboard metric.
type Card struct {
	Title  string    `json:"title"`
	Value  string    `json:"value"`
	Delta  string    `json:"delta,omitempty"`
	Trend  []float64 `json:"trend"`
	NoData bool      `json:"noData"`
}

// clampCorrelation bounds the provided correlation to [-1, 1] for display.
func clampCorrelation(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Cards derives the metric cards for the provided snapshot. Every card
// displays "No Data" when the snapshot carries no data, the sparklines are
// kept regardless.
func Cards(m shared.Metrics) []Card {
	cards := []Card{
		{
			Title: PriceTitle,
			Value: fmt.Sprintf("%.2f", m.Price),
			Delta: fmt.Sprintf("%+.2f", m.PriceDelta),
			Trend: m.Trends.Price,
		},
		{
			Title: MoodTitle,
			Value: m.MoodLabel,
			Delta: fmt.Sprintf("%+.2f", m.MoodScore),
			Trend: m.Trends.Mood,
		},
		{
			Title: CorrelationTitle,
			Value: fmt.Sprintf("%.2f", clampCorrelation(m.Correlation)),
			Trend: m.Trends.Correlation,
		},
		{
			Title: VolumeTitle,
			Value: fmt.Sprintf("%.0f", m.Volume),
			Trend: m.Trends.Volume,
		},
	}

	for idx := range cards {
		if cards[idx].Trend == nil {
			cards[idx].Trend = []float64{}
		}
		if !m.HasData {
			cards[idx].Value = NoDataValue
			cards[idx].Delta = ""
			cards[idx].NoData = true
		}
	}

	return cards
}
