package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sentinel/internal/rank"
	"sentinel/internal/signal"
)

// ChatScorer adapts any Client-backed provider (OpenAIClient today) to
// rank.LLMScorer by serializing signals and market context into a
// compact prompt and parsing a structured JSON reply.
type ChatScorer struct {
	client *Client
}

// NewChatScorer wraps base in a ChatScorer. base.hooks must already be set
// by the provider constructor (NewOpenAIClient etc).
func NewChatScorer(base *Client) *ChatScorer {
	return &ChatScorer{client: base}
}

type scoreResponse struct {
	Scores     map[string]int `json:"scores"`
	Outlook    string         `json:"outlook"`
	Action     string         `json:"action"`
	Confidence float64        `json:"confidence"`
}

func (s *ChatScorer) ScoreSignals(ctx context.Context, signals []signal.Signal, market rank.MarketContext) (rank.LLMResult, error) {
	prompt := buildScorePrompt(signals, market)
	raw, err := s.client.CallWithMessages(ctx, []Message{
		{Role: "system", Content: "You are a markets signal scorer. Reply with compact JSON only: {\"scores\":{name:score},\"outlook\":\"BULLISH|NEUTRAL|BEARISH\",\"action\":\"BUY|HOLD|SELL\",\"confidence\":0..1}."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return rank.LLMResult{}, fmt.Errorf("llm: score_signals call: %w", err)
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return rank.LLMResult{}, fmt.Errorf("llm: malformed score_signals reply: %w", err)
	}

	return rank.LLMResult{
		Scores:     parsed.Scores,
		Outlook:    rank.Outlook(parsed.Outlook),
		Action:     rank.Action(parsed.Action),
		Confidence: parsed.Confidence,
	}, nil
}

func (s *ChatScorer) Explain(ctx context.Context, signals []signal.Signal, market rank.MarketContext) (string, error) {
	prompt := buildScorePrompt(signals, market)
	raw, err := s.client.CallWithMessages(ctx, []Message{
		{Role: "system", Content: "Explain the current technical setup in two short sentences, plain text."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("llm: explain call: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

func buildScorePrompt(signals []signal.Signal, market rank.MarketContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "symbol=%s price=%.2f rsi14=%.1f adx=%.1f atr_pct=%.2f volume_ratio=%.2f\n",
		market.Symbol, market.LastPrice, market.RSI14, market.ADX, market.ATRPercent, market.VolumeRatio)
	b.WriteString("signals:\n")
	for _, sig := range signals {
		fmt.Fprintf(&b, "- %s category=%s strength=%s value=%.4f\n", sig.Name, sig.Category, sig.Strength, sig.Value)
	}
	return b.String()
}

// extractJSON trims any leading/trailing prose a chat model adds around
// the JSON object, grabbing the outermost brace pair.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
