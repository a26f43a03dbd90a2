package domain

import "time"

// Review is one stored customer review. Sentiment and ClusterID are nil until
// the analysis pipeline has run over the tenant's corpus.
type Review struct {
	ID        int64      `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Text      string     `json:"review_text"`
	Rating    *int       `json:"rating"`
	Date      *time.Time `json:"date"`
	Source    *string    `json:"source"`    // csv|text|serpapi
	SourceID  *string    `json:"source_id"` // provider dedupe key
	Sentiment *float64   `json:"sentiment"`
	ClusterID *int       `json:"cluster_id"`
}

// ReviewInput is a validated review ready to be written for a tenant.
type ReviewInput struct {
	Text     string
	Rating   *int
	Date     *time.Time
	Source   string
	SourceID *string
}

// ReviewScore is the pipeline output written back onto a stored review.
type ReviewScore struct {
	ReviewID  int64
	Sentiment float64
	ClusterID int
}

type ReviewsPage struct {
	Items []Review `json:"items"`
}

// ValidRating reports whether r is an integer star rating in 1..5.
func ValidRating(r int) bool { return r >= 1 && r <= 5 }
