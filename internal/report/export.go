package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eddiefleurent/zerotheta/internal/models"
)

// TradeRow is the flat export form of a trade.
type TradeRow struct {
	ID           string  `parquet:"id"`
	SpreadType   string  `parquet:"spread_type"`
	SoldStrike   float64 `parquet:"sold_strike"`
	BoughtStrike float64 `parquet:"bought_strike"`
	SoldTicker   string  `parquet:"sold_ticker,optional"`
	BoughtTicker string  `parquet:"bought_ticker,optional"`
	EntryTime    int64   `parquet:"entry_time"`
	ExitTime     int64   `parquet:"exit_time"`
	EntryPrice   float64 `parquet:"entry_price"`
	ExitPrice    float64 `parquet:"exit_price"`
	StopLoss     float64 `parquet:"final_stop_loss"`
	TakeProfit   float64 `parquet:"take_profit"`
	Profit       float64 `parquet:"profit"`
	ExitReason   string  `parquet:"exit_reason"`
	Trigger      string  `parquet:"trigger,optional"`
	Mode         string  `parquet:"mode"`
}

// TradeRows flattens trades for export.
func TradeRows(trades []models.Trade) []TradeRow {
	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			ID:           t.ID,
			SpreadType:   string(t.Spread.Type),
			SoldStrike:   t.Spread.Strikes.Sold,
			BoughtStrike: t.Spread.Strikes.Bought,
			SoldTicker:   t.Spread.SoldTicker,
			BoughtTicker: t.Spread.BoughtTicker,
			EntryTime:    t.EntryBar.Time.UnixNano(),
			ExitTime:     t.ExitBar.Time.UnixNano(),
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			StopLoss:     t.FinalStopLoss,
			TakeProfit:   t.TakeProfit,
			Profit:       t.Profit,
			ExitReason:   string(t.ExitReason),
			Trigger:      string(t.Trigger),
			Mode:         string(t.Mode),
		}
	}
	return rows
}

// AllTrades concatenates the trades of every day in order.
func AllTrades(days []models.DayResult) []models.Trade {
	var out []models.Trade
	for _, d := range days {
		out = append(out, d.Trades...)
	}
	return out
}

// WriteTradesParquet writes trades to a Parquet file.
func WriteTradesParquet(path string, trades []models.Trade) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := parquet.WriteFile(path, TradeRows(trades)); err != nil {
		return fmt.Errorf("write trades parquet %s: %w", path, err)
	}
	return nil
}

// ReadTradesParquet reads rows written by WriteTradesParquet.
func ReadTradesParquet(path string) ([]TradeRow, error) {
	rows, err := parquet.ReadFile[TradeRow](path)
	if err != nil {
		return nil, fmt.Errorf("read trades parquet %s: %w", path, err)
	}
	return rows, nil
}

// WriteTradesCSV writes one line per trade.
func WriteTradesCSV(path string, trades []models.Trade) error {
	header := []string{"id", "spread_type", "sold_strike", "bought_strike", "sold_ticker", "bought_ticker",
		"entry_time", "exit_time", "entry_price", "exit_price", "final_stop_loss", "take_profit",
		"profit", "exit_reason", "trigger", "mode"}
	return writeCSV(path, header, len(trades), func(i int) []string {
		r := TradeRows(trades[i : i+1])[0]
		return []string{
			r.ID, r.SpreadType, floatStr(r.SoldStrike), floatStr(r.BoughtStrike), r.SoldTicker, r.BoughtTicker,
			trades[i].EntryBar.Time.Format(time.RFC3339), trades[i].ExitBar.Time.Format(time.RFC3339),
			floatStr(r.EntryPrice), floatStr(r.ExitPrice), floatStr(r.StopLoss), floatStr(r.TakeProfit),
			floatStr(r.Profit), r.ExitReason, r.Trigger, r.Mode,
		}
	})
}

// WriteDaysCSV writes the per-day trade table.
func WriteDaysCSV(path string, s TradeSummary) error {
	header := []string{"date", "total trades", "bull put trades", "bear call trades",
		"spread availability", "profit per day", "wins", "losses"}
	return writeCSV(path, header, len(s.Days), func(i int) []string {
		d := s.Days[i]
		return []string{
			d.Date.Format(time.DateOnly), strconv.Itoa(d.Trades), strconv.Itoa(d.BullPut), strconv.Itoa(d.BearCall),
			floatStr(d.SpreadAvailability), floatStr(d.Profit), strconv.Itoa(d.Wins), strconv.Itoa(d.Losses),
		}
	})
}

// WriteMonthsCSV writes the per-month table of a run.
func WriteMonthsCSV(path string, r RunSummary) error {
	header := []string{"file_name", "total_profit", "win_rate", "total_wins", "total_losses", "total_trades"}
	return writeCSV(path, header, len(r.Months), func(i int) []string {
		m := r.Months[i]
		return []string{
			m.Name, floatStr(m.TotalProfit), floatStr(m.WinRate),
			strconv.Itoa(m.TotalWins), strconv.Itoa(m.TotalLosses), strconv.Itoa(m.TotalTrades),
		}
	})
}

func writeCSV(path string, header []string, n int, row func(i int) []string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
