package git

import (
	"math"
	"sort"
	"time"
)

// DefaultTopFiles bounds the churn ranking when no limit is configured
const DefaultTopFiles = 50

const frequencyDateLayout = "2006-01-02"

// AnalyticsAggregator folds a commit walk into a CommitAnalysis. It performs
// no I/O; output depends only on the input and the clock used for
// GeneratedAt and the empty-input date range.
type AnalyticsAggregator struct {
	topFiles int
	now      func() time.Time
}

// NewAnalyticsAggregator creates an aggregator keeping topFiles churn entries
func NewAnalyticsAggregator(topFiles int) *AnalyticsAggregator {
	if topFiles <= 0 {
		topFiles = DefaultTopFiles
	}
	return &AnalyticsAggregator{topFiles: topFiles, now: time.Now}
}

// Aggregate builds the report for commits
func (a *AnalyticsAggregator) Aggregate(commits []CommitMetadata) CommitAnalysis {
	now := a.now().UTC()
	analysis := CommitAnalysis{
		TotalCommits:       len(commits),
		DateRange:          DateRange{From: now, To: now},
		Authors:            []AuthorStats{},
		CommitFrequency:    map[string]int{},
		FileChangePatterns: []FileChangeCount{},
		TaskReferences:     map[string][]CommitMetadata{},
		GeneratedAt:        now,
	}
	if len(commits) == 0 {
		return analysis
	}

	from, to := commits[0].Timestamp, commits[0].Timestamp
	authorIndex := make(map[string]int)
	fileIndex := make(map[string]int)
	var files []FileChangeCount

	for _, c := range commits {
		if c.Timestamp.Before(from) {
			from = c.Timestamp
		}
		if c.Timestamp.After(to) {
			to = c.Timestamp
		}

		key := c.Author.Key()
		idx, ok := authorIndex[key]
		if !ok {
			idx = len(analysis.Authors)
			authorIndex[key] = idx
			analysis.Authors = append(analysis.Authors, AuthorStats{
				Name:        c.Author.Name,
				Email:       c.Author.Email,
				FirstCommit: c.Timestamp,
				LastCommit:  c.Timestamp,
			})
		}
		author := &analysis.Authors[idx]
		author.CommitCount++
		author.LinesAdded += c.Insertions
		author.LinesDeleted += c.Deletions
		if c.Timestamp.Before(author.FirstCommit) {
			author.FirstCommit = c.Timestamp
		}
		if c.Timestamp.After(author.LastCommit) {
			author.LastCommit = c.Timestamp
		}

		analysis.CommitFrequency[c.Timestamp.UTC().Format(frequencyDateLayout)]++

		for _, path := range c.FilesChanged {
			i, ok := fileIndex[path]
			if !ok {
				i = len(files)
				fileIndex[path] = i
				files = append(files, FileChangeCount{Path: path})
			}
			files[i].Count++
		}

		for _, ref := range c.TaskReferences {
			analysis.TaskReferences[ref] = append(analysis.TaskReferences[ref], c)
		}

		analysis.CodeVelocity.TotalLinesAdded += c.Insertions
		analysis.CodeVelocity.TotalLinesDeleted += c.Deletions
	}

	analysis.DateRange = DateRange{From: from, To: to}

	sort.SliceStable(analysis.Authors, func(i, j int) bool {
		return analysis.Authors[i].CommitCount > analysis.Authors[j].CommitCount
	})

	sort.SliceStable(files, func(i, j int) bool { return files[i].Count > files[j].Count })
	if len(files) > a.topFiles {
		files = files[:a.topFiles]
	}
	analysis.FileChangePatterns = append(analysis.FileChangePatterns, files...)

	days := math.Max(1, math.Ceil(to.Sub(from).Hours()/24))
	n := float64(len(commits))
	analysis.CodeVelocity.AvgCommitsPerDay = n / days
	analysis.CodeVelocity.AvgLinesChanged = float64(analysis.CodeVelocity.TotalLinesAdded+analysis.CodeVelocity.TotalLinesDeleted) / math.Max(1, n)

	return analysis
}

// TaskGroup lists the commits that reference one task
type TaskGroup struct {
	TaskID  string   `json:"taskId"`
	Commits []string `json:"commits"`
}

// GroupByTask flattens an analysis's task references into groups ordered by
// task identifier, each listing commit hashes newest first.
func GroupByTask(analysis CommitAnalysis) []TaskGroup {
	groups := make([]TaskGroup, 0, len(analysis.TaskReferences))
	for id, commits := range analysis.TaskReferences {
		sorted := make([]CommitMetadata, len(commits))
		copy(sorted, commits)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
		hashes := make([]string, len(sorted))
		for i, c := range sorted {
			hashes[i] = c.Hash
		}
		groups = append(groups, TaskGroup{TaskID: id, Commits: hashes})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].TaskID < groups[j].TaskID })
	return groups
}
