// Package report rolls per-day simulation results into per-day tables and
// scalar summaries.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// SignalDay counts one day's entry signals.
type SignalDay struct {
	Date     time.Time `json:"date"`
	Total    int       `json:"total_entries"`
	BullPut  int       `json:"bull_put_entries"`
	BearCall int       `json:"bear_call_entries"`
}

// SignalSummary is the per-day signal table plus its averages.
type SignalSummary struct {
	Days                     []SignalDay `json:"days"`
	AvgEntriesPerDay         float64     `json:"avg_entries_per_day"`
	AvgBullPutEntriesPerDay  float64     `json:"avg_bp_entries_per_day"`
	AvgBearCallEntriesPerDay float64     `json:"avg_bc_entries_per_day"`
}

// TradeDay is one row of the per-day trade table.
type TradeDay struct {
	Date               time.Time `json:"date"`
	Trades             int       `json:"total_trades"`
	BullPut            int       `json:"bull_put_trades"`
	BearCall           int       `json:"bear_call_trades"`
	SpreadAvailability float64   `json:"spread_availability"`
	Profit             float64   `json:"profit_per_day"`
	Wins               int       `json:"wins"`
	Losses             int       `json:"losses"`
}

// TradeSummary is the per-day trade table plus its scalar summary.
type TradeSummary struct {
	Days                    []TradeDay `json:"days"`
	AvgTradesPerDay         float64    `json:"avg_trades_per_day"`
	AvgBullPutTradesPerDay  float64    `json:"avg_bp_trades_per_day"`
	AvgBearCallTradesPerDay float64    `json:"avg_bc_trades_per_day"`
	AvgSpreadAvailability   float64    `json:"avg_spread_availability"`
	AvgProfitPerDay         float64    `json:"avg_profit_per_day"`
	TotalProfit             float64    `json:"total_profit"`
	TotalWins               int        `json:"total_wins"`
	TotalLosses             int        `json:"total_losses"`
	WinRate                 float64    `json:"win_rate"`
	ProfitPerTrade          float64    `json:"profit_per_trade"`
	Daily                   Stats      `json:"daily_profit_stats"`
}

// TotalTrades is wins plus losses.
func (s TradeSummary) TotalTrades() int { return s.TotalWins + s.TotalLosses }

// SummarizeSignals counts entry signals for every evaluated day.
func SummarizeSignals(days []models.DayResult) SignalSummary {
	var out SignalSummary
	for _, d := range days {
		out.Days = append(out.Days, SignalDay{
			Date:     d.Date,
			Total:    d.BullPutEntries + d.BearCallEntries,
			BullPut:  d.BullPutEntries,
			BearCall: d.BearCallEntries,
		})
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Date.Before(out.Days[j].Date) })
	if n := float64(len(out.Days)); n > 0 {
		for _, d := range out.Days {
			out.AvgEntriesPerDay += float64(d.Total)
			out.AvgBullPutEntriesPerDay += float64(d.BullPut)
			out.AvgBearCallEntriesPerDay += float64(d.BearCall)
		}
		out.AvgEntriesPerDay /= n
		out.AvgBullPutEntriesPerDay /= n
		out.AvgBearCallEntriesPerDay /= n
	}
	return out
}

// SummarizeTrades builds the per-day trade table. Days without option data are
// left out of every average.
func SummarizeTrades(days []models.DayResult) TradeSummary {
	var out TradeSummary
	total := decimal.Zero
	profits := make([]float64, 0, len(days))

	for _, d := range days {
		if !d.HasOptionData {
			continue
		}
		dayProfit := decimal.Zero
		for _, t := range d.Trades {
			dayProfit = dayProfit.Add(decimal.NewFromFloat(t.Profit))
		}
		total = total.Add(dayProfit)
		out.Days = append(out.Days, TradeDay{
			Date:               d.Date,
			Trades:             len(d.Trades),
			BullPut:            d.CountTrades(models.BullPut),
			BearCall:           d.CountTrades(models.BearCall),
			SpreadAvailability: d.Metrics.SpreadAvailability,
			Profit:             dayProfit.InexactFloat64(),
			Wins:               d.Metrics.Wins,
			Losses:             d.Metrics.Losses,
		})
		out.TotalWins += d.Metrics.Wins
		out.TotalLosses += d.Metrics.Losses
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Date.Before(out.Days[j].Date) })

	if n := float64(len(out.Days)); n > 0 {
		for _, d := range out.Days {
			out.AvgTradesPerDay += float64(d.Trades)
			out.AvgBullPutTradesPerDay += float64(d.BullPut)
			out.AvgBearCallTradesPerDay += float64(d.BearCall)
			out.AvgSpreadAvailability += d.SpreadAvailability
			profits = append(profits, d.Profit)
		}
		out.AvgTradesPerDay /= n
		out.AvgBullPutTradesPerDay /= n
		out.AvgBearCallTradesPerDay /= n
		out.AvgSpreadAvailability /= n
		out.AvgProfitPerDay = total.Div(decimal.NewFromFloat(n)).InexactFloat64()
	}
	out.TotalProfit = total.InexactFloat64()
	if trades := out.TotalTrades(); trades > 0 {
		out.WinRate = float64(out.TotalWins) / float64(trades)
		out.ProfitPerTrade = total.Div(decimal.NewFromInt(int64(trades))).InexactFloat64()
	}
	out.Daily = Dispersion(profits)
	return out
}
