package git

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// TaskCorrelation links a commit to a tracked task
type TaskCorrelation struct {
	CommitHash       string  `json:"commitHash"`
	TaskID           string  `json:"taskId"`
	Confidence       float64 `json:"confidence"`
	ProgressEstimate float64 `json:"progressEstimate"`
	Reasoning        string  `json:"reasoning,omitempty"`
	SuggestedAction  string  `json:"suggestedAction,omitempty"`
}

// TaskCorrelator scores a commit against tracked tasks. A nil correlation
// with a nil error means the commit matched nothing.
type TaskCorrelator interface {
	Correlate(ctx context.Context, commit CommitMetadata) (*TaskCorrelation, error)
}

// CorrelateCommits applies correlator to each commit in order. Commits the
// correlator fails on or cannot match are skipped; confidence and progress
// are clamped to [0, 1].
func CorrelateCommits(ctx context.Context, correlator TaskCorrelator, commits []CommitMetadata, logger logging.Logger) ([]TaskCorrelation, error) {
	if correlator == nil {
		return nil, fmt.Errorf("correlator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	logger = logger.With("component", "task_correlation")

	correlations := []TaskCorrelation{}
	for _, commit := range commits {
		if err := ctx.Err(); err != nil {
			return correlations, err
		}
		c, err := correlator.Correlate(ctx, commit)
		if err != nil {
			logger.Warn("correlation failed, skipping commit", "commit", commit.Hash, "error", err)
			continue
		}
		if c == nil || c.TaskID == "" {
			continue
		}
		out := *c
		out.CommitHash = commit.Hash
		out.Confidence = clamp01(out.Confidence)
		out.ProgressEstimate = clamp01(out.ProgressEstimate)
		correlations = append(correlations, out)
	}
	logger.Debug("correlated commits", "commits", len(commits), "matched", len(correlations))
	return correlations, nil
}

// GroupCorrelationsByTask buckets correlations by task, highest confidence first
func GroupCorrelationsByTask(correlations []TaskCorrelation) map[string][]TaskCorrelation {
	groups := make(map[string][]TaskCorrelation)
	for _, c := range correlations {
		groups[c.TaskID] = append(groups[c.TaskID], c)
	}
	for id := range groups {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Confidence > g[j].Confidence })
	}
	return groups
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ReferenceCorrelator matches commits that name a task explicitly in their
// message. It reports full confidence and leaves progress unknown.
type ReferenceCorrelator struct{}

func (ReferenceCorrelator) Correlate(ctx context.Context, commit CommitMetadata) (*TaskCorrelation, error) {
	refs := commit.TaskReferences
	if refs == nil {
		refs = ExtractTaskReferences(commit.Message)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return &TaskCorrelation{
		TaskID:          refs[0],
		Confidence:      1,
		Reasoning:       fmt.Sprintf("commit message references task %s", refs[0]),
		SuggestedAction: "review",
	}, nil
}
