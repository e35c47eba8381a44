package models

// ResearchBrief is a structured, citeable market research answer
// produced by the completion service for one free-form question.
type ResearchBrief struct {
	ExecutiveSummary string           `json:"executiveSummary"`
	KeyFindings      []KeyFinding     `json:"keyFindings"`
	RelatedTickers   []string         `json:"relatedTickers"`
	Sectors          []string         `json:"sectors"`
	RiskFactors      []string         `json:"riskFactors"`
	Sources          []ResearchSource `json:"sources"`
	Timestamp        string           `json:"timestamp"`
}

// KeyFinding is one high-signal item of a research brief
type KeyFinding struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Impact string `json:"impact"`
}

// ResearchSource is a citation backing a research brief
type ResearchSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
