package domain

// IssueCluster is one ranked group of similar reviews. It is derived from the
// tenant's reviews on every analysis run and never stored in the database.
type IssueCluster struct {
	ClusterID         int      `json:"cluster_id"`
	Label             string   `json:"issue_label"`
	Keywords          []string `json:"keywords"`
	Size              int      `json:"size"`
	FrequencyPct      float64  `json:"frequency_pct"`
	MeanSentiment     float64  `json:"mean_sentiment"`
	MeanRating        *float64 `json:"mean_rating,omitempty"`
	SampleReviews     []string `json:"sample_reviews"`
	PriorityScore     float64  `json:"priority_score"`
	RecommendedAction string   `json:"recommended_action"`

	// NegativeKeywords drive action selection; not part of the public view.
	NegativeKeywords []string `json:"-"`
}

type Summary struct {
	Reviews      int     `json:"reviews"`
	NegativePct  float64 `json:"negative_pct"`
	AvgSentiment float64 `json:"avg_sentiment"`
}

// Analysis is the full pipeline result for one tenant.
type Analysis struct {
	TenantID    string         `json:"tenant_id"`
	K           int            `json:"k"`
	Summary     Summary        `json:"summary"`
	Clusters    []IssueCluster `json:"clusters"`
	Assignments map[int64]int  `json:"assignments"` // review id -> cluster id
}
