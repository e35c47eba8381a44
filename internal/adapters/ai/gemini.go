package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/internal/articles"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
	"github.com/selivandex/market-insights/pkg/retry"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

// maxCandidates caps one batch from the completion service
const maxCandidates = 50

const (
	articlesMaxTokens = 8192
	researchMaxTokens = 4096
)

var newsSources = []string{
	"site:moneycontrol.com",
	"site:economictimes.indiatimes.com",
	"site:livemint.com",
	"site:business-standard.com",
	"site:financialexpress.com",
	"site:thehindubusinessline.com",
}

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// GeminiProvider fetches and analyzes market news in a single
// completion call with search grounding.
type GeminiProvider struct {
	apiKey string
	model  string
	policy retry.Policy
	client *http.Client
}

// NewGeminiProvider creates new Gemini provider
func NewGeminiProvider(cfg *config.AIConfig) *GeminiProvider {
	return &GeminiProvider{
		apiKey: cfg.GeminiAPIKey,
		model:  cfg.Model,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns provider name
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// FetchArticles runs the combined search-and-analysis prompt. Transport
// and API errors are retried under the provider policy; a malformed
// response body is not retried and surfaces as ErrMalformedPayload
// with an empty batch.
func (g *GeminiProvider) FetchArticles(ctx context.Context) ([]articles.Candidate, error) {
	var raw string

	err := g.policy.Do(ctx, "gemini.generate", func(ctx context.Context) error {
		text, err := g.generate(ctx, buildCombinedPrompt(), articlesMaxTokens)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		logger.Error("discarding completion batch",
			zap.Error(err),
			zap.String("response_prefix", prefix(raw, 500)),
		)
		return nil, ErrMalformedPayload
	}

	logger.Info("received candidate articles from completion service",
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// generate performs one completion API call
func (g *GeminiProvider) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"tools": []map[string]interface{}{
			{"google_search": map[string]interface{}{}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      0.2,
			"maxOutputTokens":  maxTokens,
			"responseMimeType": "application/json",
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiAPIURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("API error (status %d): %s", resp.StatusCode, prefix(string(body), 300))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", retry.Permanent{Err: err}
		}
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	logger.Debug("gemini response received",
		zap.Duration("latency", time.Since(startTime)),
	)
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// parseCandidates extracts the article list from the model output,
// tolerating markdown code fences around the JSON.
func parseCandidates(text string) ([]articles.Candidate, error) {
	text = strings.TrimSpace(text)
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var payload struct {
		Articles []articles.Candidate `json:"articles"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if payload.Articles == nil {
		return nil, fmt.Errorf("response is missing the articles list")
	}
	if len(payload.Articles) > maxCandidates {
		return nil, fmt.Errorf("batch exceeds %d articles, got %d", maxCandidates, len(payload.Articles))
	}

	return payload.Articles, nil
}

func buildCombinedPrompt() string {
	var b strings.Builder

	b.WriteString("TASK: Find and analyze recent Indian stock market news articles in a single operation.\n\n")
	b.WriteString("STEP 1 - SEARCH: Find recent articles published in the last 15-20 minutes from these sources:\n")
	for _, src := range newsSources {
		fmt.Fprintf(&b, "%q ", src)
	}
	b.WriteString("\n\nFocus on stock market news, earnings, economic indicators, sector news, corporate announcements, market trends, and IPOs.\n\n")
	b.WriteString("STEP 2 - ANALYSIS: For each article: extract the headline and source, write a 1-2 sentence summary of the key financial impact, ")
	b.WriteString("determine sentiment (\"Positive\", \"Negative\" or \"Neutral\"), extract Indian ticker symbols in UPPERCASE, ")
	fmt.Fprintf(&b, "and identify relevant sectors from: %s.\n\n", strings.Join(models.Sectors, ", "))
	b.WriteString(`OUTPUT FORMAT: Return ONLY a valid JSON object with this exact structure:
{
  "articles": [
    {
      "headline": "Article headline here",
      "source": "Source name",
      "url": "https://article-url.com",
      "summary": "Concise 1-2 sentence summary",
      "sentiment": "Positive",
      "tickers": ["RELIANCE", "TCS"],
      "sectors": ["Energy", "IT"]
    }
  ]
}

REQUIREMENTS:
- Return ONLY JSON, no additional text
- Maximum 30 articles
- Use exact sentiment values: "Positive", "Negative", or "Neutral"
- Ticker symbols must be in UPPERCASE
- Sectors must be from the predefined list
- Skip duplicate articles if found
`)

	return b.String()
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
