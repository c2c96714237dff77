package git

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"
)

func fixedAggregator(topFiles int, now time.Time) *AnalyticsAggregator {
	a := NewAnalyticsAggregator(topFiles)
	a.now = func() time.Time { return now }
	return a
}

func TestAggregate_Empty(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	analysis := fixedAggregator(0, now).Aggregate(nil)

	if analysis.TotalCommits != 0 {
		t.Fatalf("expected 0 commits, got %d", analysis.TotalCommits)
	}
	if !analysis.DateRange.From.Equal(analysis.DateRange.To) || !analysis.DateRange.From.Equal(now) {
		t.Fatalf("expected collapsed range at now, got %+v", analysis.DateRange)
	}
	if analysis.Authors == nil || analysis.CommitFrequency == nil || analysis.FileChangePatterns == nil || analysis.TaskReferences == nil {
		t.Fatal("expected non-nil collections")
	}
	if analysis.CodeVelocity != (CodeVelocity{}) {
		t.Fatalf("expected zero velocity, got %+v", analysis.CodeVelocity)
	}
}

func TestAggregate_Authors(t *testing.T) {
	t0 := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	commits := []CommitMetadata{
		{Hash: "c4", Author: AuthorInfo{Name: "Ada", Email: "ada@x"}, Timestamp: t0.Add(72 * time.Hour), Insertions: 5},
		{Hash: "c3", Author: AuthorInfo{Name: "Bob", Email: "bob@x"}, Timestamp: t0.Add(48 * time.Hour), Insertions: 1, Deletions: 1},
		{Hash: "c2", Author: AuthorInfo{Name: "Ada", Email: "ada@x"}, Timestamp: t0.Add(24 * time.Hour), Deletions: 2},
		{Hash: "c1", Author: AuthorInfo{Name: "Ada", Email: "ADA@x"}, Timestamp: t0},
	}
	analysis := NewAnalyticsAggregator(0).Aggregate(commits)

	if len(analysis.Authors) != 3 {
		t.Fatalf("expected 3 distinct authors, got %d", len(analysis.Authors))
	}
	ada := analysis.Authors[0]
	if ada.Email != "ada@x" || ada.CommitCount != 2 || ada.LinesAdded != 5 || ada.LinesDeleted != 2 {
		t.Fatalf("unexpected top author %+v", ada)
	}
	if !ada.FirstCommit.Equal(t0.Add(24*time.Hour)) || !ada.LastCommit.Equal(t0.Add(72*time.Hour)) {
		t.Fatalf("unexpected author window %s - %s", ada.FirstCommit, ada.LastCommit)
	}
	if analysis.Authors[1].Name != "Bob" || analysis.Authors[2].Email != "ADA@x" {
		t.Fatalf("expected stable order among ties, got %+v", analysis.Authors)
	}
	if !analysis.DateRange.From.Equal(t0) || !analysis.DateRange.To.Equal(t0.Add(72*time.Hour)) {
		t.Fatalf("unexpected range %+v", analysis.DateRange)
	}
}

func TestAggregate_FrequencyUsesUTCDate(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*3600)
	west := time.FixedZone("UTC-7", -7*3600)
	commits := []CommitMetadata{
		// 2024-03-05 01:00 UTC
		{Hash: "a", Timestamp: time.Date(2024, 3, 5, 10, 0, 0, 0, east)},
		// 2024-03-05 22:00 UTC
		{Hash: "b", Timestamp: time.Date(2024, 3, 5, 15, 0, 0, 0, west)},
	}
	analysis := NewAnalyticsAggregator(0).Aggregate(commits)
	want := map[string]int{"2024-03-05": 2}
	if !reflect.DeepEqual(analysis.CommitFrequency, want) {
		t.Fatalf("unexpected frequency %v", analysis.CommitFrequency)
	}
}

func TestAggregate_FileChangePatterns(t *testing.T) {
	var commits []CommitMetadata
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		files := []string{fmt.Sprintf("file%02d.go", i)}
		if i%2 == 0 {
			files = append(files, "hot.go")
		}
		commits = append(commits, CommitMetadata{Hash: fmt.Sprint(i), Timestamp: ts, FilesChanged: files})
	}

	analysis := NewAnalyticsAggregator(0).Aggregate(commits)
	patterns := analysis.FileChangePatterns
	if len(patterns) != DefaultTopFiles {
		t.Fatalf("expected %d entries, got %d", DefaultTopFiles, len(patterns))
	}
	if patterns[0].Path != "hot.go" || patterns[0].Count != 30 {
		t.Fatalf("unexpected top entry %+v", patterns[0])
	}
	for i := 1; i < len(patterns); i++ {
		if patterns[i-1].Count < patterns[i].Count {
			t.Fatalf("patterns not sorted descending at %d", i)
		}
	}
	if patterns[1].Path != "file00.go" {
		t.Fatalf("expected encounter order among ties, got %s", patterns[1].Path)
	}

	small := NewAnalyticsAggregator(3).Aggregate(commits)
	if len(small.FileChangePatterns) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(small.FileChangePatterns))
	}
}

func TestAggregate_Velocity(t *testing.T) {
	ts := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	t.Run("single commit", func(t *testing.T) {
		analysis := NewAnalyticsAggregator(0).Aggregate([]CommitMetadata{{Hash: "a", Timestamp: ts, Insertions: 10, Deletions: 4}})
		v := analysis.CodeVelocity
		if v.AvgCommitsPerDay != 1 || v.AvgLinesChanged != 14 {
			t.Fatalf("unexpected velocity %+v", v)
		}
	})

	t.Run("partial days round up", func(t *testing.T) {
		commits := []CommitMetadata{
			{Hash: "b", Timestamp: ts.Add(36 * time.Hour), Insertions: 3},
			{Hash: "a", Timestamp: ts, Deletions: 1},
			{Hash: "c", Timestamp: ts.Add(12 * time.Hour)},
			{Hash: "d", Timestamp: ts.Add(24 * time.Hour)},
		}
		v := NewAnalyticsAggregator(0).Aggregate(commits).CodeVelocity
		if v.AvgCommitsPerDay != 2 {
			t.Fatalf("expected 2 commits/day over 2 days, got %v", v.AvgCommitsPerDay)
		}
		if v.AvgLinesChanged != 1 || v.TotalLinesAdded != 3 || v.TotalLinesDeleted != 1 {
			t.Fatalf("unexpected velocity %+v", v)
		}
		if math.IsInf(v.AvgCommitsPerDay, 0) || math.IsNaN(v.AvgLinesChanged) {
			t.Fatal("velocity must be finite")
		}
	})
}

func TestAggregate_TaskReferences(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	commits := []CommitMetadata{
		{Hash: "new", Timestamp: ts.Add(time.Hour), TaskReferences: []string{"14", "27.6"}},
		{Hash: "old", Timestamp: ts, TaskReferences: []string{"14"}},
	}
	analysis := NewAnalyticsAggregator(0).Aggregate(commits)
	if len(analysis.TaskReferences["14"]) != 2 || len(analysis.TaskReferences["27.6"]) != 1 {
		t.Fatalf("unexpected task map %+v", analysis.TaskReferences)
	}

	groups := GroupByTask(analysis)
	want := []TaskGroup{
		{TaskID: "14", Commits: []string{"new", "old"}},
		{TaskID: "27.6", Commits: []string{"new"}},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Fatalf("unexpected groups %+v", groups)
	}
}
