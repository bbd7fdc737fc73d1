package models

import "time"

// TradeExecutionRecord is the normalized form of a single executed trade.
// Every numeric field is 0 when the source value was absent or non-numeric.
type TradeExecutionRecord struct {
	Symbol          string     `json:"symbol"`
	Direction       Direction  `json:"direction"`
	EntryPrice      float64    `json:"entryPrice"`
	ExitPrice       float64    `json:"exitPrice"`
	StopLoss        float64    `json:"stopLoss"`
	TakeProfit      float64    `json:"takeProfit"`
	Quantity        float64    `json:"quantity"`
	PnL             float64    `json:"pnl"`
	GrossPnL        float64    `json:"grossPnl"`
	Fees            float64    `json:"fees"`
	RMultiple       float64    `json:"rMultiple"`
	ActualRR        float64    `json:"actualRR"`
	TargetRR        float64    `json:"targetRR"`
	Emotion         Emotion    `json:"emotion"`
	SetupGrade      int        `json:"setupGrade"`
	Outcome         string     `json:"outcome"`
	StrategyName    string     `json:"strategyName"`
	Notes           string     `json:"notes"`
	Mistakes        string     `json:"mistakes"`
	MarketCondition string     `json:"marketCondition"`
	EntryTime       *time.Time `json:"entryTime,omitempty"`
	ExitTime        *time.Time `json:"exitTime,omitempty"`
}

// HasStopLoss reports whether a stop loss was set.
func (t TradeExecutionRecord) HasStopLoss() bool {
	return t.StopLoss != 0
}

// HasTakeProfit reports whether a take profit was set.
func (t TradeExecutionRecord) HasTakeProfit() bool {
	return t.TakeProfit != 0
}

// AccountContext carries optional account history. It is only ever serialized
// into the narrative prompt and is never inspected field by field.
type AccountContext map[string]any

// AnalysisRequest is the inbound payload for a single trade analysis. Both
// fields stay untyped so that the normalizer, not the decoder, decides what
// a malformed value means.
type AnalysisRequest struct {
	TradeData    any `json:"tradeData"`
	AllTradeData any `json:"allTradeData,omitempty"`
}
