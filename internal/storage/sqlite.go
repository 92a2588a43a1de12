package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/perfwatch/perfwatch/internal/stats"
)

// SQLiteStore keeps samples as rows and derived results as a single
// JSON document. Saves replace the stored state so the database always
// mirrors the engine snapshot.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the history database under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	path := filepath.Join(dataDir, "history.db")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// WAL mode for read concurrency; SQLite wants a single writer.
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", path).Msg("History store initialized")
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS samples (
			test_name TEXT NOT NULL,
			test_type TEXT,
			timestamp INTEGER NOT NULL,
			metrics TEXT NOT NULL,
			tags TEXT,
			PRIMARY KEY (test_name, timestamp)
		);

		CREATE INDEX IF NOT EXISTS idx_samples_time
		ON samples(timestamp);

		-- Derived results live as one JSON document; they are always
		-- recomputed from samples, never queried relationally.
		CREATE TABLE IF NOT EXISTS derived (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			doc TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(snap *stats.HistorySnapshot) error {
	doc, err := json.Marshal(stats.ExportData{
		Trends:           snap.Trends,
		Anomalies:        snap.Anomalies,
		Predictions:      snap.Predictions,
		SeasonalPatterns: snap.SeasonalPatterns,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal derived results: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM samples`); err != nil {
		return fmt.Errorf("failed to clear samples: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO samples (test_name, test_type, timestamp, metrics, tags)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for testName, samples := range snap.DataPoints {
		for _, sample := range samples {
			metrics, err := json.Marshal(sample.Metrics)
			if err != nil {
				return fmt.Errorf("failed to marshal sample metrics: %w", err)
			}
			var tags []byte
			if len(sample.Tags) > 0 {
				if tags, err = json.Marshal(sample.Tags); err != nil {
					return fmt.Errorf("failed to marshal sample tags: %w", err)
				}
			}
			if _, err := stmt.Exec(testName, sample.TestType, sample.Timestamp.UnixNano(), string(metrics), nullableString(tags)); err != nil {
				return fmt.Errorf("failed to insert sample: %w", err)
			}
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO derived (id, doc, saved_at) VALUES (1, ?, ?)`, string(doc), savedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to store derived results: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load() (*stats.HistorySnapshot, error) {
	rows, err := s.db.Query(`
		SELECT test_name, test_type, timestamp, metrics, tags
		FROM samples ORDER BY timestamp ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	snap := &stats.HistorySnapshot{
		DataPoints:  make(map[string][]stats.MetricSample),
		Predictions: make(map[string][]stats.PerformancePrediction),
	}
	sampleCount := 0
	for rows.Next() {
		var (
			testName, metricsJSON string
			testType, tagsJSON    sql.NullString
			ts                    int64
		)
		if err := rows.Scan(&testName, &testType, &ts, &metricsJSON, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sample := stats.MetricSample{
			TestName:  testName,
			TestType:  testType.String,
			Timestamp: time.Unix(0, ts),
		}
		if err := json.Unmarshal([]byte(metricsJSON), &sample.Metrics); err != nil {
			log.Warn().Err(err).Str("test", testName).Msg("Skipping sample with bad metrics payload")
			continue
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &sample.Tags); err != nil {
				log.Warn().Err(err).Str("test", testName).Msg("Dropping unreadable sample tags")
			}
		}
		snap.DataPoints[testName] = append(snap.DataPoints[testName], sample)
		sampleCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	var (
		doc     string
		savedAt int64
	)
	err = s.db.QueryRow(`SELECT doc, saved_at FROM derived WHERE id = 1`).Scan(&doc, &savedAt)
	switch {
	case err == sql.ErrNoRows:
		if sampleCount == 0 {
			return nil, nil
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read derived results: %w", err)
	default:
		var derived stats.ExportData
		if err := json.Unmarshal([]byte(doc), &derived); err != nil {
			return nil, fmt.Errorf("failed to decode derived results: %w", err)
		}
		snap.Trends = derived.Trends
		snap.Anomalies = derived.Anomalies
		if derived.Predictions != nil {
			snap.Predictions = derived.Predictions
		}
		snap.SeasonalPatterns = derived.SeasonalPatterns
		snap.SavedAt = time.Unix(0, savedAt)
	}
	return snap, nil
}

// QuerySamples returns one test's samples within [start, end], oldest
// first, without loading the full snapshot.
func (s *SQLiteStore) QuerySamples(testName string, start, end time.Time) ([]stats.MetricSample, error) {
	rows, err := s.db.Query(`
		SELECT test_name, test_type, timestamp, metrics, tags
		FROM samples
		WHERE test_name = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, testName, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []stats.MetricSample
	for rows.Next() {
		var (
			name, metricsJSON  string
			testType, tagsJSON sql.NullString
			ts                 int64
		)
		if err := rows.Scan(&name, &testType, &ts, &metricsJSON, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sample := stats.MetricSample{
			TestName:  name,
			TestType:  testType.String,
			Timestamp: time.Unix(0, ts),
		}
		if err := json.Unmarshal([]byte(metricsJSON), &sample.Metrics); err != nil {
			continue
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			_ = json.Unmarshal([]byte(tagsJSON.String), &sample.Tags)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// Close flushes and closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
