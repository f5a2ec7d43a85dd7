package models

import "time"

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss             ExitReason = "stop_loss"
	ExitTakeProfit           ExitReason = "take_profit"
	ExitTime                 ExitReason = "time_exit"
	ExitMoneyManagementFixed ExitReason = "money_management_fixed"
)

// Trade is a completed simulated position.
type Trade struct {
	ID              string              `json:"id"`
	Spread          Spread              `json:"spread"`
	EntryBar        Bar                 `json:"entry_bar"`
	ExitBar         Bar                 `json:"exit_bar"`
	EntryPrice      float64             `json:"entry_price"`
	ExitPrice       float64             `json:"exit_price"`
	InitialStopLoss float64             `json:"initial_stop_loss"`
	FinalStopLoss   float64             `json:"final_stop_loss"`
	TakeProfit      float64             `json:"take_profit"`
	Profit          float64             `json:"profit"`
	ExitReason      ExitReason          `json:"exit_reason"`
	Trigger         ExitReason          `json:"trigger,omitempty"`
	Mode            MoneyManagementMode `json:"mode"`
}

// IsWin reports whether the trade made money. Zero profit is a loss.
func (t Trade) IsWin() bool { return t.Profit > 0 }

// DayMetrics are the simulator's counters for one trading day.
type DayMetrics struct {
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	Flagged            int     `json:"flagged"`
	Resolved           int     `json:"resolved"`
	SpreadAvailability float64 `json:"spread_availability"`
}

// Availability computes resolved/flagged, or 0 when nothing was flagged.
func Availability(resolved, flagged int) float64 {
	if flagged == 0 {
		return 0
	}
	return float64(resolved) / float64(flagged)
}

// DayResult is the outcome of evaluating one trading day.
type DayResult struct {
	Date            time.Time  `json:"date"`
	Trades          []Trade    `json:"trades"`
	Metrics         DayMetrics `json:"metrics"`
	BullPutEntries  int        `json:"bull_put_entries"`
	BearCallEntries int        `json:"bear_call_entries"`
	HasOptionData   bool       `json:"has_option_data"`
}

// Profit sums the day's trade profits.
func (d DayResult) Profit() float64 {
	total := 0.0
	for _, t := range d.Trades {
		total += t.Profit
	}
	return total
}

// CountTrades returns the number of trades of the given direction.
func (d DayResult) CountTrades(dir Direction) int {
	n := 0
	for _, t := range d.Trades {
		if t.Spread.Type == dir {
			n++
		}
	}
	return n
}
