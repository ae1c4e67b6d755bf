package shared

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// DataPoint represents a daily OHLCV chart point.
//
// A nil price field marks an absent datum, which is distinct from zero.
type DataPoint struct {
	Date   time.Time `json:"date"`
	Open   *float64  `json:"open"`
	High   *float64  `json:"high"`
	Low    *float64  `json:"low"`
	Close  *float64  `json:"close"`
	Volume float64   `json:"volume"`
}

// Price returns a pointer to a copy of the provided price.
func Price(v float64) *float64 {
	return &v
}

// NewDataPoint initializes a real data point.
func NewDataPoint(date time.Time, open, high, low, close, volume float64) DataPoint {
	return DataPoint{
		Date:   date,
		Open:   Price(open),
		High:   Price(high),
		Low:    Price(low),
		Close:  Price(close),
		Volume: volume,
	}
}

// NewSyntheticDataPoint initializes a padding data point for the provided date.
func NewSyntheticDataPoint(date time.Time) DataPoint {
	return DataPoint{Date: date}
}

// IsSynthetic checks whether the data point carries no price data at all.
func (p *DataPoint) IsSynthetic() bool {
	return p.Open == nil && p.High == nil && p.Low == nil && p.Close == nil
}

// parseOptionalPrice returns the price at the provided key or nil when the
// key is missing, null or not numeric.
func parseOptionalPrice(data gjson.Result, key string) *float64 {
	res := data.Get(key)
	if res.Type != gjson.Number {
		return nil
	}

	return Price(res.Float())
}

// ParseDataPoints parses daily chart points from the provided json data.
func ParseDataPoints(data []gjson.Result) ([]DataPoint, error) {
	points := make([]DataPoint, 0, len(data))
	for idx := range data {
		date, err := ParseDate(data[idx].Get("date").String())
		if err != nil {
			return nil, fmt.Errorf("parsing data point date: %w", err)
		}

		points = append(points, DataPoint{
			Date:   date,
			Open:   parseOptionalPrice(data[idx], "open"),
			High:   parseOptionalPrice(data[idx], "high"),
			Low:    parseOptionalPrice(data[idx], "low"),
			Close:  parseOptionalPrice(data[idx], "close"),
			Volume: data[idx].Get("volume").Float(),
		})
	}

	return points, nil
}
