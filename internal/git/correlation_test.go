package git

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stwalsh4118/repolens/internal/logging"
)

type scriptedCorrelator map[string]struct {
	c   *TaskCorrelation
	err error
}

func (s scriptedCorrelator) Correlate(ctx context.Context, commit CommitMetadata) (*TaskCorrelation, error) {
	r := s[commit.Hash]
	return r.c, r.err
}

func TestCorrelateCommits(t *testing.T) {
	correlator := scriptedCorrelator{
		"a": {c: &TaskCorrelation{TaskID: "1", Confidence: 1.7, ProgressEstimate: -0.2}},
		"b": {err: errors.New("service unavailable")},
		"c": {},
		"d": {c: &TaskCorrelation{TaskID: "1", Confidence: math.NaN(), ProgressEstimate: 0.5}},
		"e": {c: &TaskCorrelation{TaskID: "2", Confidence: 0.4}},
	}
	commits := []CommitMetadata{{Hash: "a"}, {Hash: "b"}, {Hash: "c"}, {Hash: "d"}, {Hash: "e"}}

	got, err := CorrelateCommits(context.Background(), correlator, commits, logging.NewNoopLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 correlations, got %+v", got)
	}
	if got[0].CommitHash != "a" || got[0].Confidence != 1 || got[0].ProgressEstimate != 0 {
		t.Fatalf("expected clamped correlation, got %+v", got[0])
	}
	if got[1].CommitHash != "d" || got[1].Confidence != 0 {
		t.Fatalf("expected NaN clamped to 0, got %+v", got[1])
	}

	groups := GroupCorrelationsByTask(got)
	if len(groups["1"]) != 2 || groups["1"][0].CommitHash != "a" {
		t.Fatalf("unexpected grouping %+v", groups)
	}
	if len(groups["2"]) != 1 {
		t.Fatalf("unexpected grouping %+v", groups)
	}
}

func TestCorrelateCommits_Validation(t *testing.T) {
	if _, err := CorrelateCommits(context.Background(), nil, nil, logging.NewNoopLogger()); err == nil {
		t.Fatal("expected error for nil correlator")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CorrelateCommits(ctx, ReferenceCorrelator{}, []CommitMetadata{{Hash: "a"}}, logging.NewNoopLogger()); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestReferenceCorrelator(t *testing.T) {
	var c ReferenceCorrelator
	got, err := c.Correlate(context.Background(), CommitMetadata{Hash: "a", Message: "Fix task 27.6 and refs #14"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.TaskID != "14" || got.Confidence != 1 {
		t.Fatalf("unexpected correlation %+v", got)
	}

	got, err = c.Correlate(context.Background(), CommitMetadata{Hash: "b", Message: "tidy", TaskReferences: []string{}})
	if err != nil || got != nil {
		t.Fatalf("expected no correlation, got %+v (%v)", got, err)
	}
}
