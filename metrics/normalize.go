// Package metrics maps raw backend statistics payloads into canonical
// dashboard metrics.
//
// The backend serves statistics under two field sets. The current field set
// uses price, price_delta, mood_score, mood_label, correlation, volume and
// trends. The legacy field set uses current_price, price_change, market_mood
// and news_volume. Each canonical field is coalesced with the precedence:
// current key if present and well formed, else legacy key if present and well
// formed, else the field default.
package metrics

import (
	"math"
	"strconv"
	"strings"

	"github.com/dnldd/moodboard/shared"
	"github.com/tidwall/gjson"
)

const (
	keyPrice       = "price"
	keyPriceDelta  = "price_delta"
	keyMoodScore   = "mood_score"
	keyMoodLabel   = "mood_label"
	keyCorrelation = "correlation"
	keyVolume      = "volume"
	keyTrends      = "trends"

	legacyKeyPrice      = "current_price"
	legacyKeyPriceDelta = "price_change"
	legacyKeyMood       = "market_mood"
	legacyKeyVolume     = "news_volume"
)

// number returns the finite numeric value of the provided result. Numeric
// strings are accepted.
func number(res gjson.Result) (float64, bool) {
	var v float64
	switch res.Type {
	case gjson.Number:
		v = res.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}

// label returns the non-blank string value of the provided result.
func label(res gjson.Result) (string, bool) {
	if res.Type != gjson.String {
		return "", false
	}

	s := strings.TrimSpace(res.Str)
	if s == "" {
		return "", false
	}

	return s, true
}

// coalesceNumber returns the first well formed number found at the provided
// keys, in order, or zero.
func coalesceNumber(raw gjson.Result, keys ...string) float64 {
	for idx := range keys {
		v, ok := number(raw.Get(keys[idx]))
		if ok {
			return v
		}
	}

	return 0
}

// coalesceLabel returns the first non-blank label found at the provided keys,
// in order, or the neutral mood label.
func coalesceLabel(raw gjson.Result, keys ...string) string {
	for idx := range keys {
		s, ok := label(raw.Get(keys[idx]))
		if ok {
			return s
		}
	}

	return shared.NeutralMoodLabel
}

// series parses a trend series. Malformed elements degrade to zero so series
// stay index-aligned.
func series(res gjson.Result) []float64 {
	if !res.IsArray() {
		return []float64{}
	}

	arr := res.Array()
	values := make([]float64, len(arr))
	for idx := range arr {
		v, ok := number(arr[idx])
		if ok {
			values[idx] = v
		}
	}

	return values
}

// trends parses the trend series of the provided payload.
func trends(raw gjson.Result) shared.Trends {
	res := raw.Get(keyTrends)
	if !res.IsObject() {
		return shared.EmptyTrends()
	}

	return shared.Trends{
		Price:       series(res.Get("price")),
		Mood:        series(res.Get("mood")),
		Correlation: series(res.Get("correlation")),
		Volume:      series(res.Get("volume")),
	}
}

// Normalize maps the provided raw statistics payload into canonical metrics.
// It never fails: malformed or missing fields degrade to their defaults.
func Normalize(raw gjson.Result) shared.Metrics {
	if !raw.IsObject() {
		return shared.EmptyMetrics()
	}

	price := coalesceNumber(raw, keyPrice, legacyKeyPrice)
	volume := coalesceNumber(raw, keyVolume, legacyKeyVolume)

	return shared.Metrics{
		Price:       price,
		PriceDelta:  coalesceNumber(raw, keyPriceDelta, legacyKeyPriceDelta),
		MoodScore:   coalesceNumber(raw, keyMoodScore, legacyKeyMood),
		MoodLabel:   coalesceLabel(raw, keyMoodLabel, legacyKeyMood),
		Correlation: coalesceNumber(raw, keyCorrelation),
		Volume:      volume,
		Trends:      trends(raw),
		HasData:     shared.ComputeHasData(price, volume),
	}
}

// NormalizeBytes maps the provided raw statistics body into canonical metrics.
// Bodies that are not valid json yield the empty metrics.
func NormalizeBytes(body []byte) shared.Metrics {
	if !gjson.ValidBytes(body) {
		return shared.EmptyMetrics()
	}

	return Normalize(gjson.ParseBytes(body))
}
