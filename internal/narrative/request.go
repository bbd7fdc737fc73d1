// Package narrative produces free-text trade analyses from hosted language
// models. Callers hand it an ordered list of candidate models; it either
// returns non-empty text and the model that produced it, or fails.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tradecoach/internal/models"
	"tradecoach/internal/sections"
)

// Generation parameters fixed by the analysis rubric.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

// Role is the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one turn of the exchange sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Request is a two-message exchange plus generation settings.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Models      []string
}

// System returns the concatenated system messages.
func (r Request) System() string {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// User returns the concatenated user messages.
func (r Request) User() string {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Completion is a successful generation.
type Completion struct {
	Content string
	Model   string
}

// Generator produces a narrative for a request or fails. It never returns
// empty content without an error.
type Generator interface {
	Generate(ctx context.Context, req Request) (Completion, error)
}

// BuildRequest assembles the rubric exchange for one trade.
func BuildRequest(rec models.TradeExecutionRecord, account models.AccountContext, candidates []string) (Request, error) {
	trade, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Request{}, fmt.Errorf("encoding trade: %w", err)
	}

	acct := []byte("{}")
	if len(account) > 0 {
		acct, err = json.MarshalIndent(account, "", "  ")
		if err != nil {
			return Request{}, fmt.Errorf("encoding account context: %w", err)
		}
	}

	user := fmt.Sprintf("Analyze this trade execution.\n\nTRADE DATA:\n%s\n\nACCOUNT CONTEXT:\n%s", trade, acct)

	return Request{
		Messages: []Message{
			{Role: RoleSystem, Content: RubricPrompt()},
			{Role: RoleUser, Content: user},
		},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Models:      append([]string(nil), candidates...),
	}, nil
}

// RubricPrompt is the fixed system prompt. It names every section header the
// section parser recognises and the score-line format the extractor reads.
func RubricPrompt() string {
	var sb strings.Builder
	sb.WriteString(`You are a professional trading performance coach reviewing a single trade execution.
Be direct and specific. Judge process over outcome: a losing trade that followed the plan
is better than a winning trade that broke the rules.

Structure your response using exactly these section headers, in this order, each on its own line:
`)
	for _, key := range models.SectionKeys {
		sb.WriteString(sections.Heading(key))
		sb.WriteString("\n")
	}
	sb.WriteString(`
Guidelines:
- Base every statement on the supplied trade data and account context.
- Do not repeat section header phrases inside section bodies.
- List concrete rule violations; write "None detected" when there are none.
- Give the action plan as a numbered list of at most five steps.

In the final score section write one line per metric, scores from 0 to 100:
`)
	for _, line := range sections.ScoreLines(models.TraderScore{}) {
		sb.WriteString(strings.Replace(line, ": 0/100", ": <score>/100", 1))
		sb.WriteString("\n")
	}
	return sb.String()
}
