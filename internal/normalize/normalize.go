// Package normalize coerces loosely typed trade payloads into typed records.
package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	apperrors "tradecoach/internal/errors"
	"tradecoach/internal/models"
)

// fieldAliases maps each canonical field to the payload keys accepted for it,
// in lookup order.
var fieldAliases = map[string][]string{
	"symbol":          {"symbol", "ticker"},
	"direction":       {"direction", "side"},
	"entryPrice":      {"entryPrice", "entry_price"},
	"exitPrice":       {"exitPrice", "exit_price"},
	"stopLoss":        {"stopLoss", "stop_loss"},
	"takeProfit":      {"takeProfit", "take_profit"},
	"quantity":        {"quantity", "qty"},
	"pnl":             {"pnl", "netPnl", "net_pnl"},
	"grossPnl":        {"grossPnl", "gross_pnl"},
	"fees":            {"fees", "commission"},
	"rMultiple":       {"rMultiple", "r_multiple"},
	"actualRR":        {"actualRR", "actual_rr"},
	"targetRR":        {"targetRR", "target_rr"},
	"emotion":         {"emotion"},
	"setupGrade":      {"setupGrade", "setup_grade"},
	"outcome":         {"outcome"},
	"strategyName":    {"strategyName", "strategy_name", "strategy"},
	"notes":           {"notes"},
	"mistakes":        {"mistakes"},
	"marketCondition": {"marketCondition", "market_condition"},
	"entryTime":       {"entryTime", "entry_time", "openedAt"},
	"exitTime":        {"exitTime", "exit_time", "closedAt"},
}

// Trade normalizes a trade payload. It fails with a ValidationError when the
// payload is absent and with an UnexpectedError when it is not an object.
func Trade(raw any) (models.TradeExecutionRecord, error) {
	switch v := raw.(type) {
	case nil:
		return models.TradeExecutionRecord{}, apperrors.NewValidationError("tradeData", nil, "trade data is required", apperrors.ErrMissingTrade)
	case models.TradeExecutionRecord:
		return withDefaults(v), nil
	case *models.TradeExecutionRecord:
		if v == nil {
			return models.TradeExecutionRecord{}, apperrors.NewValidationError("tradeData", nil, "trade data is required", apperrors.ErrMissingTrade)
		}
		return withDefaults(*v), nil
	}

	fields, err := cast.ToStringMapE(raw)
	if err != nil {
		return models.TradeExecutionRecord{}, apperrors.NewUnexpectedError("normalize", apperrors.Wrap(apperrors.ErrMalformedTrade, err.Error()))
	}

	p := payload(fields)
	rec := models.TradeExecutionRecord{
		Symbol:          p.text("symbol"),
		Direction:       direction(p.text("direction")),
		EntryPrice:      p.number("entryPrice"),
		ExitPrice:       p.number("exitPrice"),
		StopLoss:        p.number("stopLoss"),
		TakeProfit:      p.number("takeProfit"),
		Quantity:        p.number("quantity"),
		PnL:             p.number("pnl"),
		GrossPnL:        p.number("grossPnl"),
		Fees:            p.number("fees"),
		RMultiple:       p.number("rMultiple"),
		ActualRR:        p.number("actualRR"),
		TargetRR:        p.number("targetRR"),
		Emotion:         models.Emotion(cast.ToString(p.value("emotion"))),
		SetupGrade:      setupGrade(p.value("setupGrade")),
		Outcome:         p.text("outcome"),
		StrategyName:    p.text("strategyName"),
		Notes:           p.text("notes"),
		Mistakes:        p.text("mistakes"),
		MarketCondition: p.text("marketCondition"),
		EntryTime:       p.time("entryTime"),
		ExitTime:        p.time("exitTime"),
	}
	return rec, nil
}

// Account normalizes the optional account history. Anything that is not an
// object is dropped.
func Account(raw any) models.AccountContext {
	if raw == nil {
		return nil
	}
	if ctx, ok := raw.(models.AccountContext); ok {
		return ctx
	}
	fields, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil
	}
	return models.AccountContext(fields)
}

// Number coerces a loosely typed value to a finite float, or 0.
func Number(v any) float64 {
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

type payload map[string]any

func (p payload) value(field string) any {
	for _, key := range fieldAliases[field] {
		if v, ok := p[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (p payload) number(field string) float64 {
	return Number(p.value(field))
}

func (p payload) text(field string) string {
	switch v := p.value(field).(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(cast.ToString(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	default:
		return strings.TrimSpace(cast.ToString(v))
	}
}

func (p payload) time(field string) *time.Time {
	v := p.value(field)
	if v == nil {
		return nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func direction(s string) models.Direction {
	switch strings.ToLower(s) {
	case "long", "buy":
		return models.DirectionLong
	case "short", "sell":
		return models.DirectionShort
	default:
		return models.Direction(strings.ToLower(s))
	}
}

// setupGrade truncates toward zero and bounds the result to the 1-5 scale
// before converting, so huge inputs never wrap.
func setupGrade(v any) int {
	grade := math.Trunc(Number(v))
	switch {
	case grade == 0:
		return models.DefaultSetupGrade
	case grade < models.MinSetupGrade:
		return models.MinSetupGrade
	case grade > models.MaxSetupGrade:
		return models.MaxSetupGrade
	}
	return int(grade)
}

func withDefaults(rec models.TradeExecutionRecord) models.TradeExecutionRecord {
	switch {
	case rec.SetupGrade == 0:
		rec.SetupGrade = models.DefaultSetupGrade
	case rec.SetupGrade < models.MinSetupGrade:
		rec.SetupGrade = models.MinSetupGrade
	case rec.SetupGrade > models.MaxSetupGrade:
		rec.SetupGrade = models.MaxSetupGrade
	}
	return rec
}
