package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

var researchSources = []string{
	"moneycontrol.com",
	"economictimes.indiatimes.com",
	"livemint.com",
	"business-standard.com",
	"nseindia.com",
	"sebi.gov.in",
	"bseindia.com",
}

// Research answers a free-form market question with a structured,
// citeable brief. Transport and API errors are retried under the
// provider policy; an unparseable response surfaces as
// ErrMalformedPayload so callers can map it to a gateway failure.
func (g *GeminiProvider) Research(ctx context.Context, question string) (*models.ResearchBrief, error) {
	var raw string

	err := g.policy.Do(ctx, "gemini.research", func(ctx context.Context) error {
		text, err := g.generate(ctx, buildResearchPrompt(question), researchMaxTokens)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("research call failed: %w", err)
	}

	brief, err := parseResearchBrief(raw)
	if err != nil {
		logger.Error("discarding research response",
			zap.Error(err),
			zap.String("response_prefix", prefix(raw, 500)),
		)
		return nil, ErrMalformedPayload
	}

	logger.Info("research brief produced",
		zap.Int("key_findings", len(brief.KeyFindings)),
		zap.Int("sources", len(brief.Sources)),
	)
	return brief, nil
}

// parseResearchBrief extracts the brief from the model output. Missing
// optional lists default to empty, never nil, so the JSON response
// always carries every field.
func parseResearchBrief(text string) (*models.ResearchBrief, error) {
	text = strings.TrimSpace(text)
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var brief models.ResearchBrief
	if err := json.Unmarshal([]byte(text), &brief); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if strings.TrimSpace(brief.ExecutiveSummary) == "" {
		return nil, fmt.Errorf("response is missing the executive summary")
	}

	if brief.Timestamp == "" {
		brief.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if brief.KeyFindings == nil {
		brief.KeyFindings = []models.KeyFinding{}
	}
	if brief.RelatedTickers == nil {
		brief.RelatedTickers = []string{}
	}
	if brief.Sectors == nil {
		brief.Sectors = []string{}
	}
	if brief.RiskFactors == nil {
		brief.RiskFactors = []string{}
	}
	if brief.Sources == nil {
		brief.Sources = []models.ResearchSource{}
	}

	return &brief, nil
}

func buildResearchPrompt(question string) string {
	var b strings.Builder

	b.WriteString("ROLE: You are a professional Indian equity market research analyst.\n")
	b.WriteString("AUDIENCE: Sophisticated investors and financial professionals.\n")
	b.WriteString("SCOPE: Use Google Search grounding to find the latest credible news, filings, and data from top Indian sources.\n")
	fmt.Fprintf(&b, "SOURCES: %s.\n", strings.Join(researchSources, ", "))
	b.WriteString("GEOGRAPHY: India markets only.\n\n")
	b.WriteString("TASK: Analyze the following market research query and produce a concise, executive-grade brief with citations.\n")
	fmt.Fprintf(&b, "QUERY: %q\n\n", question)
	b.WriteString(`OUTPUT: Return ONLY a valid JSON object with the exact shape below:
{
  "executiveSummary": "2-4 sentence overview with clear conclusion",
  "keyFindings": [
    { "title": "finding title", "detail": "1-3 sentence detail", "impact": "Positive|Negative|Neutral" }
  ],
  "relatedTickers": ["RELIANCE", "TCS"],
  "sectors": ["IT", "Banking"],
  "riskFactors": ["key risk 1", "key risk 2"],
  "sources": [
    { "name": "Moneycontrol", "url": "https://..." }
  ],
  "timestamp": "ISO8601"
}

REQUIREMENTS:
- Use Google Search grounding and prefer authoritative Indian sources.
- Use exact ticker symbols in UPPERCASE if mentioned; otherwise omit.
- Limit keyFindings to 3-6 high-signal items; include impact.
- Include at least 3 credible sources with direct URLs.
- Keep strictly to the JSON format. No markdown, no prose outside JSON.
`)

	return b.String()
}
