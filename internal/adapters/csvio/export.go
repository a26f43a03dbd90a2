package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"review_action/internal/domain"
)

// MaxSamples is the number of sample_review_N columns in the export.
const MaxSamples = 3

var exportHeader = []string{
	"cluster_id", "issue_label", "size", "mean_sentiment", "mean_rating",
	"priority_score", "recommended_action",
	"sample_review_1", "sample_review_2", "sample_review_3",
}

// WriteIssues writes ranked clusters in the given order.
func WriteIssues(w io.Writer, clusters []domain.IssueCluster) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range clusters {
		rec := []string{
			strconv.Itoa(c.ClusterID),
			c.Label,
			strconv.Itoa(c.Size),
			strconv.FormatFloat(c.MeanSentiment, 'f', 4, 64),
			"",
			strconv.FormatFloat(c.PriorityScore, 'f', 4, 64),
			c.RecommendedAction,
		}
		if c.MeanRating != nil {
			rec[4] = strconv.FormatFloat(*c.MeanRating, 'f', 2, 64)
		}
		for i := 0; i < MaxSamples; i++ {
			s := ""
			if i < len(c.SampleReviews) {
				s = c.SampleReviews[i]
			}
			rec = append(rec, s)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadIssues parses a file produced by WriteIssues.
func ReadIssues(r io.Reader) ([]domain.IssueCluster, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	if len(header) != len(exportHeader) || header[0] != exportHeader[0] {
		return nil, fmt.Errorf("%w: unexpected export header %v", domain.ErrInvalidInput, header)
	}
	var out []domain.IssueCluster
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		c, err := parseIssue(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}
}

func parseIssue(rec []string) (domain.IssueCluster, error) {
	var (
		c   domain.IssueCluster
		err error
	)
	if c.ClusterID, err = strconv.Atoi(rec[0]); err != nil {
		return c, err
	}
	c.Label = rec[1]
	if c.Size, err = strconv.Atoi(rec[2]); err != nil {
		return c, err
	}
	if c.MeanSentiment, err = strconv.ParseFloat(rec[3], 64); err != nil {
		return c, err
	}
	if rec[4] != "" {
		f, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return c, err
		}
		c.MeanRating = &f
	}
	if c.PriorityScore, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return c, err
	}
	c.RecommendedAction = rec[6]
	for _, s := range rec[7:] {
		if s != "" {
			c.SampleReviews = append(c.SampleReviews, s)
		}
	}
	return c, nil
}
