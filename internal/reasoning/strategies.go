package reasoning

import (
	"context"
	"fmt"
	"math"
)

// MarketStrategy reads price and volume series plus a sentiment score in
// [-1,1] and weighs them 0.4/0.3/0.3 into a buy, sell or hold call.
type MarketStrategy struct {
	// TrendThreshold is the relative move below which a series is neutral.
	TrendThreshold float64
	// SignalThreshold is the combined signal needed to buy or sell.
	SignalThreshold float64
}

// NewMarketStrategy uses a 1% trend threshold and a 0.2 signal threshold.
func NewMarketStrategy() *MarketStrategy {
	return &MarketStrategy{TrendThreshold: 0.01, SignalThreshold: 0.2}
}

type trend struct {
	Direction  string  `json:"trend"`
	Change     float64 `json:"change"`
	Confidence float64 `json:"confidence"`
	sign       float64
}

func (s *MarketStrategy) Analyze(_ context.Context, data map[string]interface{}) (Analysis, error) {
	price := seriesTrend(toFloatSeries(data["prices"]), s.TrendThreshold, "upward", "downward")
	volume := seriesTrend(toFloatSeries(data["volumes"]), s.TrendThreshold, "increasing", "decreasing")
	sentiment, _ := toFloat(data["sentiment"])
	sentiment = math.Max(-1, math.Min(1, sentiment))

	confidence := price.Confidence*0.4 + volume.Confidence*0.3 + math.Abs(sentiment)*0.3

	// Rising volume confirms the price direction; falling volume weakens it.
	signal := price.sign*price.Confidence*0.4 +
		sentiment*0.3 +
		price.sign*volume.sign*volume.Confidence*0.3

	action := "hold"
	switch {
	case signal >= s.SignalThreshold:
		action = "buy"
	case signal <= -s.SignalThreshold:
		action = "sell"
	}

	return Analysis{
		Action:     action,
		Confidence: confidence,
		Reasoning: []string{
			fmt.Sprintf("Price trend analysis indicates %s movement with %.2f confidence", price.Direction, price.Confidence),
			fmt.Sprintf("Volume analysis shows %s pattern with %.2f confidence", volume.Direction, volume.Confidence),
			fmt.Sprintf("Market sentiment is %s with strength %.2f", polarity(sentiment), math.Abs(sentiment)),
		},
		Details: map[string]interface{}{
			"price_trend":     price,
			"volume_analysis": volume,
			"sentiment":       sentiment,
			"signal":          signal,
		},
	}, nil
}

// seriesTrend compares the last value of a series with its first. A 10%
// move yields full confidence.
func seriesTrend(series []float64, threshold float64, up, down string) trend {
	if len(series) < 2 || series[0] == 0 {
		return trend{Direction: "neutral"}
	}
	change := (series[len(series)-1] - series[0]) / math.Abs(series[0])
	t := trend{Change: change, Confidence: math.Min(1, math.Abs(change)*10)}
	switch {
	case change > threshold:
		t.Direction, t.sign = up, 1
	case change < -threshold:
		t.Direction, t.sign = down, -1
	default:
		t.Direction = "neutral"
	}
	return t
}

func polarity(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	}
	return "neutral"
}

// RiskStrategy recommends reducing exposure when drawdown or position
// exposure passes its limit.
type RiskStrategy struct {
	MaxDrawdown float64
	MaxExposure float64
}

// NewRiskStrategy allows a 20% drawdown and 50% exposure.
func NewRiskStrategy() *RiskStrategy {
	return &RiskStrategy{MaxDrawdown: 0.2, MaxExposure: 0.5}
}

func (s *RiskStrategy) Analyze(_ context.Context, data map[string]interface{}) (Analysis, error) {
	drawdown, _ := toFloat(data["drawdown"])
	exposure, _ := toFloat(data["exposure"])
	drawdown, exposure = math.Abs(drawdown), math.Abs(exposure)

	ddRatio := drawdown / s.MaxDrawdown
	expRatio := exposure / s.MaxExposure
	worst := math.Max(ddRatio, expRatio)

	a := Analysis{
		Details: map[string]interface{}{
			"drawdown":       drawdown,
			"exposure":       exposure,
			"drawdown_ratio": ddRatio,
			"exposure_ratio": expRatio,
		},
		Reasoning: []string{
			fmt.Sprintf("Drawdown %.2f against a limit of %.2f", drawdown, s.MaxDrawdown),
			fmt.Sprintf("Exposure %.2f against a limit of %.2f", exposure, s.MaxExposure),
		},
	}
	if worst > 1 {
		a.Action = "reduce"
		a.Confidence = math.Min(1, 0.5+(worst-1)*0.5)
		a.Reasoning = append(a.Reasoning, "Risk limits exceeded, reduce position size")
		return a, nil
	}
	a.Action = "hold"
	a.Confidence = 1 - worst*0.5
	a.Reasoning = append(a.Reasoning, "Risk within limits")
	return a, nil
}

// MarketAnalyzer is the LLM-side market analysis, implemented by
// provider.Reasoner.
type MarketAnalyzer interface {
	AnalyzeMarket(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error)
}

// AnalyzerStrategy delegates analysis to a MarketAnalyzer and reads
// "action", "confidence" and "reasoning" from its reply.
type AnalyzerStrategy struct {
	analyzer MarketAnalyzer
}

// NewAnalyzerStrategy wraps an analyzer.
func NewAnalyzerStrategy(analyzer MarketAnalyzer) *AnalyzerStrategy {
	return &AnalyzerStrategy{analyzer: analyzer}
}

func (s *AnalyzerStrategy) Analyze(ctx context.Context, data map[string]interface{}) (Analysis, error) {
	reply, err := s.analyzer.AnalyzeMarket(ctx, data)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze market: %w", err)
	}

	a := Analysis{Action: "hold", Details: reply}
	if action, ok := reply["action"].(string); ok && action != "" {
		a.Action = action
	}
	if c, ok := toFloat(reply["confidence"]); ok {
		a.Confidence = math.Max(0, math.Min(1, c))
	}
	switch r := reply["reasoning"].(type) {
	case string:
		a.Reasoning = []string{r}
	case []interface{}:
		for _, step := range r {
			if s, ok := step.(string); ok {
				a.Reasoning = append(a.Reasoning, s)
			}
		}
	case []string:
		a.Reasoning = append(a.Reasoning, r...)
	}
	return a, nil
}
