// Package store provides SQLite-backed persistence for graded results and
// the audit trail.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gradelab/gograder/internal/models"
)

// Store provides access to the gograder SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for concurrent readers while a job is persisting
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		student TEXT NOT NULL,
		assignment_code TEXT,
		total_score INTEGER,
		breakdown TEXT,
		status TEXT NOT NULL,
		algorithms TEXT,
		has_rubric INTEGER NOT NULL DEFAULT 0,
		ai_scored INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit (
		id TEXT PRIMARY KEY,
		event TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_student ON results(student);
	CREATE INDEX IF NOT EXISTS idx_results_assignment ON results(assignment_code);
	CREATE INDEX IF NOT EXISTS idx_audit_event ON audit(event);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Result Operations ---

// SaveBatch persists one graded batch in a single transaction and returns
// the inserted row ids. The submitter is recovered from the decorated
// filename ("student | file").
func (s *Store) SaveBatch(ctx context.Context, results []models.GradedResult, assignmentCode string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ids := make([]string, 0, len(results))
	for _, r := range results {
		id := uuid.New().String()
		student, filename := splitDecoratedName(r.Name)

		var breakdown sql.NullString
		if r.Breakdown != nil {
			b, err := json.Marshal(r.Breakdown)
			if err != nil {
				return nil, fmt.Errorf("marshal breakdown: %w", err)
			}
			breakdown = sql.NullString{String: string(b), Valid: true}
		}
		notes, err := json.Marshal(r.Notes)
		if err != nil {
			return nil, fmt.Errorf("marshal notes: %w", err)
		}

		var total sql.NullInt64
		if r.TotalScore != nil {
			total = sql.NullInt64{Int64: int64(*r.TotalScore), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO results (id, filename, student, assignment_code, total_score, breakdown, status, algorithms, has_rubric, ai_scored, notes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, filename, student, nullString(assignmentCode), total, breakdown,
			string(r.Status), r.Algorithms, boolToInt(r.HasRubric), boolToInt(r.AIScored),
			string(notes), now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert result: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return ids, nil
}

// ScoresByStudent returns all persisted results for one student, newest
// first.
func (s *Store) ScoresByStudent(ctx context.Context, student string) ([]models.ScoreRecord, error) {
	return s.queryScores(ctx,
		`SELECT id, filename, student, assignment_code, total_score, breakdown, status, algorithms, has_rubric, ai_scored, notes, created_at
		 FROM results WHERE student = ? ORDER BY created_at DESC`, student)
}

// ScoresByAssignment returns all persisted results for one assignment code,
// newest first.
func (s *Store) ScoresByAssignment(ctx context.Context, code string) ([]models.ScoreRecord, error) {
	return s.queryScores(ctx,
		`SELECT id, filename, student, assignment_code, total_score, breakdown, status, algorithms, has_rubric, ai_scored, notes, created_at
		 FROM results WHERE assignment_code = ? ORDER BY created_at DESC`, code)
}

func (s *Store) queryScores(ctx context.Context, query string, args ...interface{}) ([]models.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var records []models.ScoreRecord
	for rows.Next() {
		var rec models.ScoreRecord
		var code, breakdown, notes sql.NullString
		var total sql.NullInt64
		var hasRubric, aiScored int
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Student, &code, &total, &breakdown,
			&rec.Status, &rec.Algorithms, &hasRubric, &aiScored, &notes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if code.Valid {
			rec.AssignmentCode = code.String
		}
		if total.Valid {
			n := int(total.Int64)
			rec.TotalScore = &n
		}
		if breakdown.Valid {
			var bd models.ScoreBreakdown
			if err := json.Unmarshal([]byte(breakdown.String), &bd); err == nil {
				rec.Breakdown = &bd
			}
		}
		if notes.Valid {
			_ = json.Unmarshal([]byte(notes.String), &rec.Notes)
		}
		rec.HasRubric = hasRubric != 0
		rec.AIScored = aiScored != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// statBands are the score ranges used in the statistics report.
var statBands = []struct {
	label    string
	min, max int
}{
	{"90-100", 90, 100},
	{"75-89", 75, 89},
	{"60-74", 60, 74},
	{"40-59", 40, 59},
	{"0-39", 0, 39},
}

// Stats aggregates the scored results, optionally limited to one assignment
// code. Unscored rows (NULL total) are excluded.
func (s *Store) Stats(ctx context.Context, assignmentCode string) (*models.ScoreStats, error) {
	query := `SELECT total_score FROM results WHERE total_score IS NOT NULL`
	var args []interface{}
	if assignmentCode != "" {
		query += ` AND assignment_code = ?`
		args = append(args, assignmentCode)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &models.ScoreStats{Bands: make(map[string]int, len(statBands))}
	for _, band := range statBands {
		stats.Bands[band.label] = 0
	}

	sum := 0
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		stats.Count++
		sum += score
		if stats.Min == nil || score < *stats.Min {
			v := score
			stats.Min = &v
		}
		if stats.Max == nil || score > *stats.Max {
			v := score
			stats.Max = &v
		}
		for _, band := range statBands {
			if score >= band.min && score <= band.max {
				stats.Bands[band.label]++
				break
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Count > 0 {
		avg := math.Round(float64(sum)/float64(stats.Count)*10) / 10
		stats.Average = &avg
	}
	return stats, nil
}

// --- Audit Operations ---

// WriteAudit appends one entry to the audit trail.
func (s *Store) WriteAudit(event, inputHash, details string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Event:     event,
		InputHash: inputHash,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO audit (id, event, input_hash, details, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Event, entry.InputHash, entry.Details, entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

// ListAudit returns the most recent audit entries, newest first.
func (s *Store) ListAudit(limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, event, input_hash, details, timestamp FROM audit ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Event, &e.InputHash, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if details.Valid {
			e.Details = details.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// splitDecoratedName recovers the submitter from a "student | file" name.
// Undecorated names belong to anonymous submissions.
func splitDecoratedName(name string) (student, filename string) {
	if i := strings.Index(name, " | "); i >= 0 {
		return name[:i], name[i+3:]
	}
	return "anonymous", name
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
