package report

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MonthResult is the evaluation of one month file.
type MonthResult struct {
	Name    string        `json:"file_name"`
	Signals SignalSummary `json:"signals"`
	Trades  TradeSummary  `json:"trades"`
}

// MonthRow is one line of the per-month table.
type MonthRow struct {
	Name        string  `json:"file_name" parquet:"file_name"`
	TotalProfit float64 `json:"total_profit" parquet:"total_profit"`
	WinRate     float64 `json:"win_rate" parquet:"win_rate"`
	TotalWins   int     `json:"total_wins" parquet:"total_wins"`
	TotalLosses int     `json:"total_losses" parquet:"total_losses"`
	TotalTrades int     `json:"total_trades" parquet:"total_trades"`
}

// RunSummary aggregates a whole run across month files.
type RunSummary struct {
	Months                   []MonthRow `json:"months"`
	ValidMonths              int        `json:"valid_months"`
	AvgEntriesPerDay         float64    `json:"avg_entries_per_day"`
	AvgBullPutEntriesPerDay  float64    `json:"avg_bp_entries_per_day"`
	AvgBearCallEntriesPerDay float64    `json:"avg_bc_entries_per_day"`
	AvgTradesPerDay          float64    `json:"avg_trades_per_day"`
	AvgBullPutTradesPerDay   float64    `json:"avg_bp_trades_per_day"`
	AvgBearCallTradesPerDay  float64    `json:"avg_bc_trades_per_day"`
	AvgSpreadAvailability    float64    `json:"avg_spread_availability"`
	AvgProfitPerDay          float64    `json:"avg_profit_per_day"`
	TotalProfit              float64    `json:"total_profit"`
	TotalWins                int        `json:"total_wins"`
	TotalLosses              int        `json:"total_losses"`
	WinRate                  float64    `json:"win_rate"`
	ProfitPerTrade           float64    `json:"profit_per_trade"`
	MonthlyProfit            Stats      `json:"monthly_profit_stats"`
	MonthlyWinRate           Stats      `json:"monthly_win_rate_stats"`
}

// Combine averages month summaries over the months given and totals their
// counts. Months are ordered by name.
func Combine(months []MonthResult) RunSummary {
	var out RunSummary
	sorted := append([]MonthResult(nil), months...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	total := decimal.Zero
	profits := make([]float64, 0, len(sorted))
	winRates := make([]float64, 0, len(sorted))
	for _, m := range sorted {
		t := m.Trades
		out.AvgEntriesPerDay += m.Signals.AvgEntriesPerDay
		out.AvgBullPutEntriesPerDay += m.Signals.AvgBullPutEntriesPerDay
		out.AvgBearCallEntriesPerDay += m.Signals.AvgBearCallEntriesPerDay
		out.AvgTradesPerDay += t.AvgTradesPerDay
		out.AvgBullPutTradesPerDay += t.AvgBullPutTradesPerDay
		out.AvgBearCallTradesPerDay += t.AvgBearCallTradesPerDay
		out.AvgSpreadAvailability += t.AvgSpreadAvailability
		out.AvgProfitPerDay += t.AvgProfitPerDay
		out.WinRate += t.WinRate
		out.TotalWins += t.TotalWins
		out.TotalLosses += t.TotalLosses
		total = total.Add(decimal.NewFromFloat(t.TotalProfit))

		out.Months = append(out.Months, MonthRow{
			Name:        m.Name,
			TotalProfit: t.TotalProfit,
			WinRate:     t.WinRate,
			TotalWins:   t.TotalWins,
			TotalLosses: t.TotalLosses,
			TotalTrades: t.TotalTrades(),
		})
		profits = append(profits, t.TotalProfit)
		winRates = append(winRates, t.WinRate)
	}

	out.ValidMonths = len(sorted)
	if n := float64(out.ValidMonths); n > 0 {
		out.AvgEntriesPerDay /= n
		out.AvgBullPutEntriesPerDay /= n
		out.AvgBearCallEntriesPerDay /= n
		out.AvgTradesPerDay /= n
		out.AvgBullPutTradesPerDay /= n
		out.AvgBearCallTradesPerDay /= n
		out.AvgSpreadAvailability /= n
		out.AvgProfitPerDay /= n
		out.WinRate /= n
	}
	out.TotalProfit = total.InexactFloat64()
	if trades := out.TotalWins + out.TotalLosses; trades > 0 {
		out.ProfitPerTrade = total.Div(decimal.NewFromInt(int64(trades))).InexactFloat64()
	}
	out.MonthlyProfit = Dispersion(profits)
	out.MonthlyWinRate = Dispersion(winRates)
	return out
}

// Metrics flattens the summary into named scalars for experiment tracking.
func (r RunSummary) Metrics() map[string]float64 {
	return map[string]float64{
		"avg/avg_trades_per_day":      r.AvgTradesPerDay,
		"avg/avg_bp_trades_per_day":   r.AvgBullPutTradesPerDay,
		"avg/avg_bc_trades_per_day":   r.AvgBearCallTradesPerDay,
		"avg/avg_spread_availability": r.AvgSpreadAvailability,
		"avg/avg_profit_per_day":      r.AvgProfitPerDay,
		"avg/avg_entries_per_day":     r.AvgEntriesPerDay,
		"avg/avg_bp_entries_per_day":  r.AvgBullPutEntriesPerDay,
		"avg/avg_bc_entries_per_day":  r.AvgBearCallEntriesPerDay,
		"t/total_profit":              r.TotalProfit,
		"t/total_wins":                float64(r.TotalWins),
		"t/total_losses":              float64(r.TotalLosses),
		"win_rate":                    r.WinRate,
		"profit_per_trade":            r.ProfitPerTrade,
		"stat/profit_std":             r.MonthlyProfit.Std,
		"stat/profit_z_score":         r.MonthlyProfit.ZScore,
		"stat/winrate_std":            r.MonthlyWinRate.Std,
		"stat/winrate_z_score":        r.MonthlyWinRate.ZScore,
		"stat/sharpe_ratio":           r.MonthlyProfit.Sharpe,
	}
}
