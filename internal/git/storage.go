package git

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/repolens/internal/logging"
)

// ErrReportNotFound is returned when an archived report id is unknown
var ErrReportNotFound = errors.New("report not found")

// ReportStorage archives analysis reports. It is an export target only; the
// engine never reads it back to answer a query.
type ReportStorage interface {
	StoreAnalysis(ctx context.Context, repo Repository, opts WalkOptions, analysis CommitAnalysis) (string, error)
	// ListAnalyses returns summaries newest first; an empty repoPath lists every repository
	ListAnalyses(ctx context.Context, repoPath string, limit int) ([]StoredReport, error)
	GetAnalysis(ctx context.Context, id string) (*StoredReport, error)
}

// StoredReport is an archived analysis. Analysis is nil in list results.
type StoredReport struct {
	ID             string          `json:"id"`
	RepositoryPath string          `json:"repositoryPath"`
	RepositoryName string          `json:"repositoryName"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	TotalCommits   int             `json:"totalCommits"`
	Options        WalkOptions     `json:"options"`
	Analysis       *CommitAnalysis `json:"analysis,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type reportStorage struct {
	db     *sql.DB
	logger logging.Logger
}

// NewReportStorage creates an archive over an opened, migrated database
func NewReportStorage(db *sql.DB, logger logging.Logger) (ReportStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &reportStorage{
		db:     db,
		logger: logger.With("component", "report_storage"),
	}, nil
}

func (s *reportStorage) StoreAnalysis(ctx context.Context, repo Repository, opts WalkOptions, analysis CommitAnalysis) (string, error) {
	if repo.Path == "" {
		return "", fmt.Errorf("repository path cannot be empty")
	}

	reportJSON, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}
	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}

	id := uuid.New().String()
	name := repo.Name
	if name == "" {
		if r, err := NewRepository(repo.Path); err == nil {
			name = r.Name
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_reports (
			id, repository_path, repository_name, generated_at, total_commits,
			range_from, range_to, options_json, report_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		repo.Path,
		name,
		formatTime(analysis.GeneratedAt),
		analysis.TotalCommits,
		formatTime(analysis.DateRange.From),
		formatTime(analysis.DateRange.To),
		string(optionsJSON),
		string(reportJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		s.logger.Error("failed to store analysis", "repository", repo.Path, "error", err)
		return "", fmt.Errorf("failed to store analysis: %w", err)
	}

	s.logger.Info("archived analysis", "id", id, "repository", repo.Path, "commits", analysis.TotalCommits)
	return id, nil
}

func (s *reportStorage) ListAnalyses(ctx context.Context, repoPath string, limit int) ([]StoredReport, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, repository_path, repository_name, generated_at, total_commits, options_json, created_at
		FROM analysis_reports`
	args := []any{}
	if repoPath != "" {
		query += ` WHERE repository_path = ?`
		args = append(args, repoPath)
	}
	query += ` ORDER BY generated_at DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	reports := []StoredReport{}
	for rows.Next() {
		var (
			report                      StoredReport
			generatedAt, createdAt, opt string
		)
		if err := rows.Scan(&report.ID, &report.RepositoryPath, &report.RepositoryName, &generatedAt, &report.TotalCommits, &opt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		if err := hydrateReport(&report, generatedAt, createdAt, opt); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return reports, nil
}

func (s *reportStorage) GetAnalysis(ctx context.Context, id string) (*StoredReport, error) {
	var (
		report                      StoredReport
		generatedAt, createdAt, opt string
		body                        string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, repository_path, repository_name, generated_at, total_commits, options_json, created_at, report_json
		FROM analysis_reports WHERE id = ?
	`, id).Scan(&report.ID, &report.RepositoryPath, &report.RepositoryName, &generatedAt, &report.TotalCommits, &opt, &createdAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}
	if err := hydrateReport(&report, generatedAt, createdAt, opt); err != nil {
		return nil, err
	}

	var analysis CommitAnalysis
	if err := json.Unmarshal([]byte(body), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis %s: %w", id, err)
	}
	report.Analysis = &analysis
	return &report, nil
}

func hydrateReport(report *StoredReport, generatedAt, createdAt, options string) error {
	var err error
	if report.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return fmt.Errorf("invalid generated_at for report %s: %w", report.ID, err)
	}
	if report.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return fmt.Errorf("invalid created_at for report %s: %w", report.ID, err)
	}
	if err := json.Unmarshal([]byte(options), &report.Options); err != nil {
		return fmt.Errorf("invalid options for report %s: %w", report.ID, err)
	}
	return nil
}

// storedTimeLayout is fixed-width so stored timestamps sort lexically
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}
