package metrics

import (
	"encoding/json"
	"testing"

	"github.com/dnldd/moodboard/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/tidwall/gjson"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want shared.Metrics
	}{
		{
			name: "empty body",
			raw:  `{}`,
			want: shared.EmptyMetrics(),
		},
		{
			name: "legacy payload with price only",
			raw:  `{"current_price": 4500, "price_change": -30, "news_volume": 0}`,
			want: shared.Metrics{
				Price:      4500,
				PriceDelta: -30,
				MoodLabel:  shared.NeutralMoodLabel,
				Trends:     shared.EmptyTrends(),
				HasData:    true,
			},
		},
		{
			name: "legacy payload with volume only",
			raw:  `{"current_price": 0, "news_volume": 12, "market_mood": 61.5}`,
			want: shared.Metrics{
				MoodScore: 61.5,
				MoodLabel: shared.NeutralMoodLabel,
				Volume:    12,
				Trends:    shared.EmptyTrends(),
				HasData:   true,
			},
		},
		{
			name: "legacy mood label",
			raw:  `{"current_price": 10, "market_mood": "Bullish"}`,
			want: shared.Metrics{
				Price:     10,
				MoodLabel: "Bullish",
				Trends:    shared.EmptyTrends(),
				HasData:   true,
			},
		},
		{
			name: "current payload",
			raw: `{"price": 5000, "price_delta": 12.5, "mood_score": 70, "mood_label": "Greed",
				"correlation": -0.4, "volume": 321,
				"trends": {"price": [1, 2], "mood": [3, 4], "correlation": [0.1, 0.2], "volume": [5, 6]}}`,
			want: shared.Metrics{
				Price:       5000,
				PriceDelta:  12.5,
				MoodScore:   70,
				MoodLabel:   "Greed",
				Correlation: -0.4,
				Volume:      321,
				Trends: shared.Trends{
					Price:       []float64{1, 2},
					Mood:        []float64{3, 4},
					Correlation: []float64{0.1, 0.2},
					Volume:      []float64{5, 6},
				},
				HasData: true,
			},
		},
		{
			name: "current keys take precedence over legacy keys",
			raw:  `{"price": 5000, "current_price": 1, "volume": 0, "news_volume": 99}`,
			want: shared.Metrics{
				Price:     5000,
				MoodLabel: shared.NeutralMoodLabel,
				Trends:    shared.EmptyTrends(),
				HasData:   true,
			},
		},
		{
			name: "null current keys fall back to legacy keys",
			raw:  `{"price": null, "current_price": 42, "mood_label": null, "market_mood": "Fear"}`,
			want: shared.Metrics{
				Price:     42,
				MoodLabel: "Fear",
				Trends:    shared.EmptyTrends(),
				HasData:   true,
			},
		},
		{
			name: "malformed fields degrade to defaults",
			raw: `{"price": "abc", "volume": {"x": 1}, "mood_label": "  ", "correlation": [1],
				"trends": {"price": [1, "x", null, 4], "mood": "nope"}}`,
			want: shared.Metrics{
				MoodLabel: shared.NeutralMoodLabel,
				Trends: shared.Trends{
					Price:       []float64{1, 0, 0, 4},
					Mood:        []float64{},
					Correlation: []float64{},
					Volume:      []float64{},
				},
			},
		},
		{
			name: "numeric strings are accepted",
			raw:  `{"price": "4500.5", "volume": " 3 "}`,
			want: shared.Metrics{
				Price:     4500.5,
				Volume:    3,
				MoodLabel: shared.NeutralMoodLabel,
				Trends:    shared.EmptyTrends(),
				HasData:   true,
			},
		},
		{
			name: "negative price without volume has no data",
			raw:  `{"price": -5, "volume": 0}`,
			want: shared.Metrics{
				Price:     -5,
				MoodLabel: shared.NeutralMoodLabel,
				Trends:    shared.EmptyTrends(),
			},
		},
		{
			name: "non object payload",
			raw:  `[1, 2, 3]`,
			want: shared.EmptyMetrics(),
		},
	}

	for _, test := range tests {
		metrics := Normalize(gjson.Parse(test.raw))
		if !cmp.Equal(metrics, test.want) {
			t.Errorf("%s: mismatching metrics, got %v", test.name, cmp.Diff(metrics, test.want))
		}
	}
}

func TestNormalizeHasDataInvariant(t *testing.T) {
	prices := []float64{-10, 0, 0.01, 4500}
	volumes := []float64{-1, 0, 1, 250}

	for _, price := range prices {
		for _, volume := range volumes {
			payloads := []map[string]float64{
				{"price": price, "volume": volume},
				{"current_price": price, "news_volume": volume},
			}

			for idx := range payloads {
				body, err := json.Marshal(payloads[idx])
				assert.NoError(t, err)

				metrics := NormalizeBytes(body)
				want := price > 0 || volume > 0
				if metrics.HasData != want {
					t.Errorf("price %v, volume %v: expected hasData %v, got %v",
						price, volume, want, metrics.HasData)
				}
			}
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raws := []string{
		`{}`,
		`{"current_price": 4500, "price_change": -30, "news_volume": 0, "market_mood": "Bearish"}`,
		`{"price": 5000, "price_delta": 1, "mood_score": 40, "mood_label": "Fear", "correlation": 0.7,
			"volume": 12, "trends": {"price": [1, 2, 3], "volume": [4]}}`,
	}

	for idx := range raws {
		first := Normalize(gjson.Parse(raws[idx]))

		body, err := json.Marshal(first)
		assert.NoError(t, err)

		second := NormalizeBytes(body)
		if !cmp.Equal(first, second) {
			t.Errorf("payload %d: normalization is not idempotent, got %v", idx, cmp.Diff(first, second))
		}
	}
}

func TestNormalizeBytes(t *testing.T) {
	// Ensure invalid bodies yield the empty metrics.
	metrics := NormalizeBytes([]byte(`{"price": 45`))
	assert.Equal(t, metrics, shared.EmptyMetrics())

	metrics = NormalizeBytes(nil)
	assert.Equal(t, metrics, shared.EmptyMetrics())

	// Ensure valid bodies are normalized.
	metrics = NormalizeBytes([]byte(`{"current_price": 4500}`))
	assert.Equal(t, metrics.Price, float64(4500))
	assert.True(t, metrics.HasData)
}
