package marketdata

import (
	"time"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

type barRaw struct {
	Timestamp int64   `json:"t"` // Unix milliseconds
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

func (b barRaw) toBar() models.Bar {
	return models.Bar{
		Time:  time.UnixMilli(b.Timestamp).UTC(),
		Open:  b.Open,
		High:  b.High,
		Low:   b.Low,
		Close: b.Close,
	}
}

type aggregatesResponse struct {
	Ticker       string   `json:"ticker"`
	ResultsCount int      `json:"resultsCount"`
	Results      []barRaw `json:"results"`
	Status       string   `json:"status"`
	RequestID    string   `json:"request_id"`
	NextURL      string   `json:"next_url,omitempty"`
}
