package testing

import (
	"time"

	"github.com/aristath/metron/internal/modules/panel"
)

// NewPriceFixtures returns a small two-symbol panel for use in tests.
// AAPL has clean data; MSFT includes a missing adjusted close and a
// zero adjusted close so validator paths get exercised.
func NewPriceFixtures() []panel.PricePoint {
	return []panel.PricePoint{
		{
			Symbol: "AAPL", Date: "2024-01-02",
			Open: Float64Ptr(185.0), High: Float64Ptr(186.5), Low: Float64Ptr(183.9),
			Close: Float64Ptr(185.6), AdjustedClose: Float64Ptr(185.6), Volume: Int64Ptr(52_000_000),
		},
		{
			Symbol: "AAPL", Date: "2024-01-03",
			Open: Float64Ptr(184.2), High: Float64Ptr(185.9), Low: Float64Ptr(183.4),
			Close: Float64Ptr(184.3), AdjustedClose: Float64Ptr(184.3), Volume: Int64Ptr(58_400_000),
		},
		{
			Symbol: "AAPL", Date: "2024-01-04",
			Open: Float64Ptr(182.2), High: Float64Ptr(183.1), Low: Float64Ptr(180.9),
			Close: Float64Ptr(181.9), AdjustedClose: Float64Ptr(181.9), Volume: Int64Ptr(71_900_000),
		},
		{
			Symbol: "MSFT", Date: "2024-01-02",
			Open: Float64Ptr(373.9), High: Float64Ptr(375.9), Low: Float64Ptr(369.8),
			Close: Float64Ptr(370.9), AdjustedClose: Float64Ptr(370.9), Volume: Int64Ptr(25_200_000),
		},
		{
			// Missing adjusted close: imported, but unusable for returns
			Symbol: "MSFT", Date: "2024-01-03",
			Open: Float64Ptr(370.0), High: Float64Ptr(372.2), Low: Float64Ptr(368.0),
			Close: Float64Ptr(370.6), Volume: Int64Ptr(21_300_000),
		},
		{
			// Zero adjusted close: imported, flagged at compute time
			Symbol: "MSFT", Date: "2024-01-04",
			Open: Float64Ptr(370.7), High: Float64Ptr(373.5), Low: Float64Ptr(368.7),
			Close: Float64Ptr(369.1), AdjustedClose: Float64Ptr(0), Volume: Int64Ptr(20_800_000),
		},
		{
			Symbol: "MSFT", Date: "2024-01-05",
			Open: Float64Ptr(368.9), High: Float64Ptr(371.1), Low: Float64Ptr(367.3),
			Close: Float64Ptr(367.8), AdjustedClose: Float64Ptr(367.8), Volume: Int64Ptr(19_900_000),
		},
	}
}

// GeneratePriceSeries builds a deterministic synthetic series: the
// adjusted close rises 0.5% on even rows and falls 0.3% on odd rows,
// volume grows linearly. Dates are consecutive calendar days from
// start. Useful for rolling-window tests that need long histories.
func GeneratePriceSeries(symbol, start string, days int, startPrice float64) []panel.PricePoint {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		panic("GeneratePriceSeries: bad start date " + start)
	}

	points := make([]panel.PricePoint, 0, days)
	price := startPrice
	for i := 0; i < days; i++ {
		if i > 0 {
			if i%2 == 0 {
				price *= 1.005
			} else {
				price *= 0.997
			}
		}

		date := startDate.AddDate(0, 0, i).Format("2006-01-02")
		open := price * 0.998
		high := price * 1.004
		low := price * 0.994
		volume := int64(1_000_000 + 10_000*i)

		points = append(points, panel.PricePoint{
			Symbol:        symbol,
			Date:          date,
			Open:          Float64Ptr(open),
			High:          Float64Ptr(high),
			Low:           Float64Ptr(low),
			Close:         Float64Ptr(price),
			AdjustedClose: Float64Ptr(price),
			Volume:        Int64Ptr(volume),
		})
	}

	return points
}

// Float64Ptr returns a pointer to the given float64 value
func Float64Ptr(f float64) *float64 {
	return &f
}

// Int64Ptr returns a pointer to the given int64 value
func Int64Ptr(i int64) *int64 {
	return &i
}
