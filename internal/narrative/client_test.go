package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "tradecoach/internal/errors"
	"tradecoach/internal/models"
	"tradecoach/internal/resilience"
	"tradecoach/internal/sections"
	"tradecoach/pkg/utils"
)

// fakeProvider returns scripted responses per model.
type fakeProvider struct {
	name      string
	responses map[string]string
	errs      map[string]error
	block     bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, model string, req Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := f.errs[model]; err != nil {
		return "", err
	}
	return f.responses[model], nil
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testRequest(models ...string) Request {
	return Request{
		Messages:    []Message{{Role: RoleSystem, Content: "rubric"}, {Role: RoleUser, Content: "trade"}},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Models:      models,
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		id       string
		provider string
		model    string
	}{
		{"gpt-4o-mini", ProviderOpenAI, "gpt-4o-mini"},
		{"claude-3-5-haiku-latest", ProviderAnthropic, "claude-3-5-haiku-latest"},
		{"Claude-Opus", ProviderAnthropic, "Claude-Opus"},
		{"anthropic:custom-model", ProviderAnthropic, "custom-model"},
		{"OPENAI:o3-mini", ProviderOpenAI, "o3-mini"},
		{"ft:gpt-4o:org", ProviderOpenAI, "ft:gpt-4o:org"},
	}
	for _, tt := range tests {
		p, m := Route(tt.id)
		if p != tt.provider || m != tt.model {
			t.Errorf("Route(%q) = %s, %s; want %s, %s", tt.id, p, m, tt.provider, tt.model)
		}
	}
}

func TestGenerate_PrimaryAttemptsFirstModelOnly(t *testing.T) {
	oa := &fakeProvider{name: ProviderOpenAI, errs: map[string]error{"gpt-4o-mini": errors.New("boom")}}
	an := &fakeProvider{name: ProviderAnthropic, responses: map[string]string{"claude-3-5-haiku-latest": "text"}}
	c := NewClient(WithProvider(oa), WithProvider(an))

	_, err := c.Generate(context.Background(), testRequest("gpt-4o-mini", "claude-3-5-haiku-latest"))
	var genErr *apperrors.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Model != "gpt-4o-mini" {
		t.Errorf("GenerationError.Model = %q", genErr.Model)
	}
	if len(an.Calls()) != 0 {
		t.Errorf("primary strategy should not try the second model, calls %v", an.Calls())
	}
}

func TestGenerate_SequentialFallsThrough(t *testing.T) {
	oa := &fakeProvider{name: ProviderOpenAI, errs: map[string]error{"gpt-4o-mini": apperrors.ErrRateLimited}}
	an := &fakeProvider{name: ProviderAnthropic, responses: map[string]string{"claude-3-5-haiku-latest": "EXECUTIVE SUMMARY:\nok"}}
	c := NewClient(WithProvider(oa), WithProvider(an), WithStrategy(StrategySequential))

	got, err := c.Generate(context.Background(), testRequest("gpt-4o-mini", "claude-3-5-haiku-latest"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Model != "claude-3-5-haiku-latest" || got.Content != "EXECUTIVE SUMMARY:\nok" {
		t.Errorf("Generate() = %+v", got)
	}
}

func TestGenerate_SequentialAllFail(t *testing.T) {
	oa := &fakeProvider{name: ProviderOpenAI, errs: map[string]error{"a": errors.New("x"), "b": errors.New("y")}}
	c := NewClient(WithProvider(oa), WithStrategy(StrategySequential))

	_, err := c.Generate(context.Background(), testRequest("a", "b"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := oa.Calls(); len(got) != 2 {
		t.Errorf("calls = %v, want both models", got)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		models   []string
		sentinel error
	}{
		{
			name:     "empty completion",
			provider: &fakeProvider{name: ProviderOpenAI, responses: map[string]string{"m": "  \n "}},
			models:   []string{"m"},
			sentinel: apperrors.ErrEmptyCompletion,
		},
		{
			name:     "auth failure",
			provider: &fakeProvider{name: ProviderOpenAI, errs: map[string]error{"m": classifyStatus(401, errors.New("bad key"))}},
			models:   []string{"m"},
			sentinel: apperrors.ErrNotAuthenticated,
		},
		{
			name:     "rate limited",
			provider: &fakeProvider{name: ProviderOpenAI, errs: map[string]error{"m": classifyStatus(429, errors.New("slow down"))}},
			models:   []string{"m"},
			sentinel: apperrors.ErrRateLimited,
		},
		{
			name:     "unconfigured provider",
			provider: &fakeProvider{name: ProviderOpenAI},
			models:   []string{"claude-3-5-haiku-latest"},
			sentinel: apperrors.ErrUnknownProvider,
		},
		{
			name:     "no models",
			provider: &fakeProvider{name: ProviderOpenAI},
			models:   nil,
			sentinel: apperrors.ErrNoModels,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(WithProvider(tt.provider))
			got, err := c.Generate(context.Background(), testRequest(tt.models...))
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Generate() error = %v, want %v", err, tt.sentinel)
			}
			if got.Content != "" {
				t.Errorf("failed generation returned content %q", got.Content)
			}
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	oa := &fakeProvider{name: ProviderOpenAI, block: true}
	c := NewClient(WithProvider(oa))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, testRequest("gpt-4o-mini"))
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerate_CircuitBreakerFailsFast(t *testing.T) {
	oa := &fakeProvider{name: ProviderOpenAI, errs: map[string]error{"m": errors.New("down")}}
	c := NewClient(WithProvider(oa), WithCircuitBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	}))

	_, _ = c.Generate(context.Background(), testRequest("m"))
	_, err := c.Generate(context.Background(), testRequest("m"))
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if len(oa.Calls()) != 1 {
		t.Errorf("open circuit should not reach the provider, calls %v", oa.Calls())
	}
	if c.Breakers() == nil || len(c.Breakers().AllStats()) != 1 {
		t.Error("expected one breaker")
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": StrategyPrimary, "primary": StrategyPrimary, " Sequential ": StrategySequential} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStrategy("random"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestBuildRequest(t *testing.T) {
	rec := models.TradeExecutionRecord{Symbol: "ES", StopLoss: 4990, SetupGrade: 4}
	candidates := []string{"gpt-4o-mini", "claude-3-5-haiku-latest"}

	req, err := BuildRequest(rec, nil, candidates)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem || req.Messages[1].Role != RoleUser {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	if req.Temperature != 0.3 || req.MaxTokens != 2000 {
		t.Errorf("Temperature/MaxTokens = %v/%d", req.Temperature, req.MaxTokens)
	}
	if !strings.Contains(req.User(), `"symbol": "ES"`) || !strings.Contains(req.User(), "ACCOUNT CONTEXT:\n{}") {
		t.Errorf("user message missing trade or empty account:\n%s", req.User())
	}

	candidates[0] = "mutated"
	if req.Models[0] != "gpt-4o-mini" {
		t.Error("BuildRequest should copy the candidate list")
	}

	withAcct, _ := BuildRequest(rec, models.AccountContext{"totalTrades": 42}, nil)
	if !strings.Contains(withAcct.User(), `"totalTrades": 42`) {
		t.Errorf("account context not embedded:\n%s", withAcct.User())
	}
}

func TestRubricPrompt_NamesEveryHeader(t *testing.T) {
	prompt := RubricPrompt()
	for _, key := range models.SectionKeys {
		if !strings.Contains(prompt, sections.Heading(key)) {
			t.Errorf("rubric missing heading for %s", key)
		}
	}
	if !strings.Contains(prompt, "• Risk Discipline: <score>/100") {
		t.Errorf("rubric missing score line format:\n%s", prompt)
	}
}

// flakyProvider fails with err until the given number of calls has passed.
type flakyProvider struct {
	err       error
	failUntil int
	calls     int
}

func (f *flakyProvider) Name() string { return ProviderOpenAI }

func (f *flakyProvider) Complete(ctx context.Context, model string, req Request) (string, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return "", f.err
	}
	return "narrative", nil
}

func TestGenerate_RetriesRateLimited(t *testing.T) {
	p := &flakyProvider{err: fmt.Errorf("%w: slow down", apperrors.ErrRateLimited), failUntil: 2}
	c := NewClient(WithProvider(p), WithRetry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 1}))

	got, err := c.Generate(context.Background(), testRequest("gpt-4o-mini"))
	if err != nil || got.Content != "narrative" {
		t.Fatalf("Generate() = %+v, %v", got, err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestGenerate_DoesNotRetryAuthFailures(t *testing.T) {
	p := &flakyProvider{err: fmt.Errorf("%w: bad key", apperrors.ErrNotAuthenticated), failUntil: 5}
	c := NewClient(WithProvider(p), WithRetry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}))

	_, err := c.Generate(context.Background(), testRequest("gpt-4o-mini"))
	if !errors.Is(err, apperrors.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}
