package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"tradecoach/internal/models"
)

// LoadRequest reads one analysis request from path, or stdin when path is
// "-". The file holds either a request envelope with a tradeData key or a
// bare trade object, encoded as JSON or YAML.
func LoadRequest(path string) (models.AnalysisRequest, error) {
	raw, err := decodeFile(path)
	if err != nil {
		return models.AnalysisRequest{}, err
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return models.AnalysisRequest{}, fmt.Errorf("%s: expected an object, got %T", path, raw)
	}
	return toRequest(obj), nil
}

// LoadBatch reads many trades from path. CSV files hold one trade per row;
// JSON and YAML files hold a list of trades or request envelopes.
func LoadBatch(path string) ([]models.AnalysisRequest, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return loadCSV(path)
	}

	raw, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected a list of trades, got %T", path, raw)
	}

	reqs := make([]models.AnalysisRequest, 0, len(items))
	for _, item := range items {
		// Non-object entries are passed through so the pipeline reports them
		// as degraded rather than failing the whole batch.
		if obj, ok := item.(map[string]interface{}); ok {
			reqs = append(reqs, toRequest(obj))
		} else {
			reqs = append(reqs, models.AnalysisRequest{TradeData: item})
		}
	}
	return reqs, nil
}

func toRequest(obj map[string]interface{}) models.AnalysisRequest {
	if trade, ok := obj["tradeData"]; ok {
		req := models.AnalysisRequest{TradeData: trade}
		if account, ok := obj["allTradeData"]; ok && account != nil {
			req.AllTradeData = account
		}
		return req
	}
	return models.AnalysisRequest{TradeData: obj}
}

func decodeFile(path string) (interface{}, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return raw, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// tradeRow is one CSV row. Values stay strings so the normalizer applies its
// usual parse-or-zero rules.
type tradeRow struct {
	Symbol          string `csv:"symbol"`
	Direction       string `csv:"direction"`
	EntryPrice      string `csv:"entryPrice"`
	ExitPrice       string `csv:"exitPrice"`
	StopLoss        string `csv:"stopLoss"`
	TakeProfit      string `csv:"takeProfit"`
	Quantity        string `csv:"quantity"`
	PnL             string `csv:"pnl"`
	GrossPnL        string `csv:"grossPnl"`
	Fees            string `csv:"fees"`
	RMultiple       string `csv:"rMultiple"`
	ActualRR        string `csv:"actualRR"`
	TargetRR        string `csv:"targetRR"`
	Emotion         string `csv:"emotion"`
	SetupGrade      string `csv:"setupGrade"`
	Outcome         string `csv:"outcome"`
	StrategyName    string `csv:"strategyName"`
	Notes           string `csv:"notes"`
	Mistakes        string `csv:"mistakes"`
	MarketCondition string `csv:"marketCondition"`
	EntryTime       string `csv:"entryTime"`
	ExitTime        string `csv:"exitTime"`
}

// fields returns the non-empty columns keyed by their trade field name.
func (r tradeRow) fields() map[string]interface{} {
	cols := map[string]string{
		"symbol":          r.Symbol,
		"direction":       r.Direction,
		"entryPrice":      r.EntryPrice,
		"exitPrice":       r.ExitPrice,
		"stopLoss":        r.StopLoss,
		"takeProfit":      r.TakeProfit,
		"quantity":        r.Quantity,
		"pnl":             r.PnL,
		"grossPnl":        r.GrossPnL,
		"fees":            r.Fees,
		"rMultiple":       r.RMultiple,
		"actualRR":        r.ActualRR,
		"targetRR":        r.TargetRR,
		"emotion":         r.Emotion,
		"setupGrade":      r.SetupGrade,
		"outcome":         r.Outcome,
		"strategyName":    r.StrategyName,
		"notes":           r.Notes,
		"mistakes":        r.Mistakes,
		"marketCondition": r.MarketCondition,
		"entryTime":       r.EntryTime,
		"exitTime":        r.ExitTime,
	}

	out := make(map[string]interface{}, len(cols))
	for k, v := range cols {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

func loadCSV(path string) ([]models.AnalysisRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	var rows []*tradeRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	reqs := make([]models.AnalysisRequest, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, models.AnalysisRequest{TradeData: row.fields()})
	}
	return reqs, nil
}
