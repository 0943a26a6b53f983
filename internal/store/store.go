// Package store persists pipeline runs and scraped articles in a local
// SQLite database. Runs, their scored attempts and publish outcomes form
// the audit trail behind the history command; the article cache spares
// repeat fetches of the same URL, and the rewrite cache replays an
// accepted result for a URL and model pair without another backend call.
// The pipeline never reads the audit tables back for control decisions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/perepys/internal/article"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		model TEXT,
		title TEXT,
		state TEXT NOT NULL,
		accepted BOOLEAN DEFAULT FALSE,
		seo_score REAL,
		content_score REAL,
		iterations INTEGER DEFAULT 0,
		findings TEXT,
		warnings TEXT,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rewrite_attempts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		source TEXT NOT NULL,
		title TEXT,
		description TEXT,
		seo_score REAL,
		content_score REAL,
		suggestions TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES pipeline_runs(id)
	);

	CREATE TABLE IF NOT EXISTS publications (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		remote_id INTEGER,
		link TEXT,
		status TEXT,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES pipeline_runs(id)
	);

	CREATE TABLE IF NOT EXISTS article_cache (
		url TEXT PRIMARY KEY,
		title TEXT,
		payload TEXT NOT NULL,
		fetched_at TIMESTAMP,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rewrite_cache (
		url TEXT NOT NULL,
		model TEXT NOT NULL,
		title TEXT,
		description TEXT,
		body TEXT NOT NULL,
		report TEXT,
		iterations INTEGER DEFAULT 0,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (url, model)
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_run ON rewrite_attempts(run_id);
	CREATE INDEX IF NOT EXISTS idx_publications_run ON publications(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON pipeline_runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	ID           string
	URL          string
	Model        string
	Title        string
	State        string
	Accepted     bool
	SEOScore     float64
	ContentScore float64
	Iterations   int
	Findings     []string
	Warnings     []string
	Error        string
	CreatedAt    time.Time
}

// RunFilter narrows ListRuns output. Zero values mean no filtering.
type RunFilter struct {
	URL          string
	State        string
	AcceptedOnly bool
	Limit        int
}

// RunStats summarises the audit trail.
type RunStats struct {
	TotalRuns       int
	AcceptedRuns    int
	PublishedRuns   int
	TotalAttempts   int
	AvgIterations   float64
	AvgSEOScore     float64
	AvgContentScore float64
}

func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, url, model, title, state, accepted, seo_score, content_score, iterations, findings, warnings, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.Model, rec.Title, rec.State, rec.Accepted, rec.SEOScore, rec.ContentScore,
		rec.Iterations, joinList(rec.Findings), joinList(rec.Warnings), rec.Error, created)
	return err
}

func (s *Store) SaveAttempt(ctx context.Context, runID string, att article.Attempt) error {
	id := fmt.Sprintf("%s_%d_%s", runID, att.Candidate.Iteration, att.Candidate.Source)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rewrite_attempts (id, run_id, iteration, source, title, description, seo_score, content_score, suggestions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, runID, att.Candidate.Iteration, string(att.Candidate.Source), att.Candidate.Title,
		att.Candidate.Description, att.Report.SEOScore, att.Report.ContentScore,
		joinList(att.Report.Suggestions), time.Now())
	return err
}

func (s *Store) SavePublication(ctx context.Context, runID string, pub article.Publication) error {
	id := fmt.Sprintf("%s_pub", runID)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO publications (id, run_id, remote_id, link, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, runID, pub.RemoteID, pub.Link, pub.Status, pub.Error, time.Now())
	return err
}

func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, model, title, state, accepted, seo_score, content_score, iterations, findings, warnings, error, created_at
		 FROM pipeline_runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns runs matching the filter, most recent first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	q := sq.Select("id", "url", "model", "title", "state", "accepted", "seo_score",
		"content_score", "iterations", "findings", "warnings", "error", "created_at").
		From("pipeline_runs").
		OrderBy("created_at DESC")

	if filter.URL != "" {
		q = q.Where(sq.Like{"url": "%" + filter.URL + "%"})
	}
	if filter.State != "" {
		q = q.Where(sq.Eq{"state": filter.State})
	}
	if filter.AcceptedOnly {
		q = q.Where(sq.Eq{"accepted": true})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}

	return results, rows.Err()
}

// DeleteRun removes a run together with its attempts and publications.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rewrite_attempts WHERE run_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE run_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_runs WHERE id = ?`, id)
	return err
}

// ClearRuns wipes the audit trail and returns the number of runs removed.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rewrite_attempts`); err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM publications`); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_runs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN accepted THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(iterations), 0),
			COALESCE(AVG(seo_score), 0),
			COALESCE(AVG(content_score), 0)
		FROM pipeline_runs`).Scan(
		&stats.TotalRuns,
		&stats.AcceptedRuns,
		&stats.AvgIterations,
		&stats.AvgSEOScore,
		&stats.AvgContentScore,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publications WHERE COALESCE(error, '') = ''`).Scan(&stats.PublishedRuns)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rewrite_attempts`).Scan(&stats.TotalAttempts)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// AttemptRecord is a row from the rewrite_attempts table.
type AttemptRecord struct {
	ID           string
	RunID        string
	Iteration    int
	Source       string
	Title        string
	Description  string
	SEOScore     float64
	ContentScore float64
	Suggestions  []string
	CreatedAt    time.Time
}

// ListAttempts returns every scored attempt of a run in iteration order.
func (s *Store) ListAttempts(ctx context.Context, runID string) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, iteration, source, title, description, seo_score, content_score, suggestions, created_at
		 FROM rewrite_attempts WHERE run_id = ? ORDER BY iteration, created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AttemptRecord
	for rows.Next() {
		var a AttemptRecord
		var suggestions string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Iteration, &a.Source, &a.Title, &a.Description,
			&a.SEOScore, &a.ContentScore, &suggestions, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Suggestions = splitList(suggestions)
		results = append(results, a)
	}

	return results, rows.Err()
}

// GetPublication returns the publish outcome of a run, if any.
func (s *Store) GetPublication(ctx context.Context, runID string) (*article.Publication, error) {
	var pub article.Publication
	err := s.db.QueryRowContext(ctx,
		`SELECT remote_id, link, status, error FROM publications WHERE run_id = ?`, runID).
		Scan(&pub.RemoteID, &pub.Link, &pub.Status, &pub.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// GetCachedArticle looks up a previously fetched article by URL and bumps
// its usage counters on a hit.
func (s *Store) GetCachedArticle(ctx context.Context, rawURL string) (*article.RawArticle, bool, error) {
	key := normalizeText(rawURL)

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM article_cache WHERE url = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var art article.RawArticle
	if err := json.Unmarshal([]byte(payload), &art); err != nil {
		return nil, false, fmt.Errorf("decode cached article: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE article_cache SET usage_count = usage_count + 1, last_used = ? WHERE url = ?`,
		time.Now(), key)

	return &art, true, err
}

// CacheArticle stores a fetched article, replacing any earlier fetch of
// the same URL.
func (s *Store) CacheArticle(ctx context.Context, art *article.RawArticle) error {
	payload, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("encode article: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO article_cache (url, title, payload, fetched_at, usage_count, last_used, created_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		normalizeText(art.URL), art.Title, string(payload), art.FetchedAt, time.Now(), time.Now())
	return err
}

// GetCachedRewrite looks up an accepted rewrite by URL and model and bumps
// its usage counters on a hit. The returned result replays the original
// outcome: final candidate, report, accepted state and iteration count.
func (s *Store) GetCachedRewrite(ctx context.Context, rawURL, modelName string) (*article.PipelineResult, bool, error) {
	key := normalizeText(rawURL)

	var (
		title, description, body, report string
		iterations                       int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, description, body, report, iterations FROM rewrite_cache WHERE url = ? AND model = ?`,
		key, modelName).Scan(&title, &description, &body, &report, &iterations)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	res := &article.PipelineResult{
		URL:   rawURL,
		Model: modelName,
		Final: article.Candidate{
			Title:       title,
			Body:        body,
			Description: description,
			Iteration:   iterations,
			Source:      article.SourceRewrite,
		},
		Accepted:       true,
		IterationsUsed: iterations,
		State:          "ACCEPTED",
	}
	if report != "" {
		if err := json.Unmarshal([]byte(report), &res.Report); err != nil {
			return nil, false, fmt.Errorf("decode cached report: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE rewrite_cache SET usage_count = usage_count + 1, last_used = ? WHERE url = ? AND model = ?`,
		time.Now(), key, modelName)

	return res, true, err
}

// CacheRewrite stores a finished run's final text and report, replacing
// any earlier entry for the same URL and model.
func (s *Store) CacheRewrite(ctx context.Context, res *article.PipelineResult) error {
	report, err := json.Marshal(res.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rewrite_cache (url, model, title, description, body, report, iterations, usage_count, last_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		normalizeText(res.URL), res.Model, res.Final.Title, res.Final.Description, res.Final.Body,
		string(report), res.IterationsUsed, time.Now(), time.Now())
	return err
}

// ClearCache removes all cached articles and rewrites.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	articles, err := s.db.ExecContext(ctx, `DELETE FROM article_cache`)
	if err != nil {
		return 0, err
	}
	rewrites, err := s.db.ExecContext(ctx, `DELETE FROM rewrite_cache`)
	if err != nil {
		return 0, err
	}
	a, err := articles.RowsAffected()
	if err != nil {
		return 0, err
	}
	r, err := rewrites.RowsAffected()
	if err != nil {
		return 0, err
	}
	return a + r, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var findings, warnings string
	err := row.Scan(&rec.ID, &rec.URL, &rec.Model, &rec.Title, &rec.State, &rec.Accepted,
		&rec.SEOScore, &rec.ContentScore, &rec.Iterations, &findings, &warnings, &rec.Error, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Findings = splitList(findings)
	rec.Warnings = splitList(warnings)
	return &rec, nil
}

func joinList(items []string) string {
	return strings.Join(items, "\n")
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "\n")
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
