package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/llm"
)

const classifierSystemPrompt = "あなたはGA4分析質問を構造化するアシスタントです。必ずJSON形式のみで回答してください。"

const classifierPromptTemplate = `GA4分析質問を解析してJSONで回答してください：

質問: "%s"

以下のフォーマットで正確なJSONのみを返してください：
{
  "timeframe": {"type": "relative", "period": "last_week"},
  "metrics": ["totalRevenue"],
  "dimensions": ["deviceCategory"],
  "analysisType": "simple_query"
}

指定可能な値:
- timeframe.type: "relative", "absolute", "named"
- timeframe.period: "today", "yesterday", "last_week", "this_week", "last_month", "this_month", "last_7_days", "last_30_days", "9月", "8月", "10月"
- metrics: "totalRevenue", "sessions", "screenPageViews", "activeUsers", "transactions"
- dimensions: "deviceCategory", "pagePath", "pageTitle", "sessionDefaultChannelGrouping", "date", または空配列
- analysisType: "simple_query", "comparison", "ranking", "trend", "device_breakdown", "period_comparison"

ガイドライン:
- 売上/収益/revenue/売り上げ → "totalRevenue"
- PV/ページビュー/閲覧/page view → "screenPageViews"
- ユーザー/訪問者/user → "activeUsers"
- セッション/session → "sessions"
- 購入/トランザクション/コンバージョン → "transactions"
- デバイス/device → dimensions: ["deviceCategory"]
- ページ/page → dimensions: ["pagePath"]
- チャネル/channel → dimensions: ["sessionDefaultChannelGrouping"]
- ランキング/順位/トップ → "ranking"
- 比較/vs/対比 → "comparison"
- 推移/変化/トレンド → "trend"
- 期間比較（先月vs今月） → "period_comparison"

JSONのみ返してください。説明は不要です。`

// LLMClassifier delegates question interpretation to a completion model with
// a constrained JSON output contract. Any request or parse failure degrades
// to DefaultConfig; the caller never sees an error.
type LLMClassifier struct {
	provider llm.Provider
	model    string
}

func NewLLMClassifier(provider llm.Provider, model string) *LLMClassifier {
	return &LLMClassifier{provider: provider, model: model}
}

func (c *LLMClassifier) Classify(_ context.Context, question, _ string) AnalysisConfig {
	prompt := fmt.Sprintf(classifierPromptTemplate, question)

	resp, err := c.provider.Complete(classifierSystemPrompt, prompt,
		llm.WithModel(c.model),
		llm.WithMaxTokens(300),
	)
	if err != nil {
		slog.Warn("LLM classification failed, using default config", "error", err)
		return DefaultConfig()
	}

	var cfg AnalysisConfig
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &cfg); err != nil {
		slog.Warn("LLM classification returned unparseable JSON, using default config",
			"error", err, "content", resp.Content)
		return DefaultConfig()
	}

	return Normalize(cfg)
}

// stripCodeFence tolerates models that wrap JSON in a markdown block despite
// instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
