// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package results persists paper outcomes in SQLite as a run progresses and
// exports them as YAML artifacts.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/significance-miner/pkg/types"
)

const dbFile = "results.db"

// Store manages the results database in the output directory. Writes are
// serialized; one paper is saved per transaction.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	dir string
}

// NewStore opens or creates dir/results.db and its schema.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Dir returns the output directory the store lives in.
func (s *Store) Dir() string { return s.dir }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			idx INTEGER PRIMARY KEY,
			doi TEXT NOT NULL,
			title TEXT,
			citation_count INTEGER,
			state TEXT NOT NULL,
			skip_reason TEXT,
			detail TEXT,
			source TEXT,
			saved_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi)`,
		`CREATE TABLE IF NOT EXISTS windows (
			paper_idx INTEGER NOT NULL REFERENCES papers(idx) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			text TEXT NOT NULL,
			terms TEXT,
			PRIMARY KEY (paper_idx, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS classifications (
			paper_idx INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			label TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (paper_idx, seq),
			FOREIGN KEY (paper_idx, seq) REFERENCES windows(paper_idx, seq) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_classifications_label ON classifications(label)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Reset removes every stored outcome. A run calls it before the first paper
// so the database reflects exactly one run.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"classifications", "windows", "papers"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// SavePaper stores the outcome of the record at input position idx,
// replacing anything stored for that position. A classification whose
// window is not among the outcome's windows is rejected.
func (s *Store) SavePaper(ctx context.Context, idx int, o types.PaperOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE idx = ?`, idx); err != nil {
		return fmt.Errorf("deleting old outcome: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (idx, doi, title, citation_count, state, skip_reason, detail, source, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		idx, o.Record.DOI, o.Record.Title, o.Record.CitationCount,
		string(o.State), string(o.SkipReason), o.Detail, o.Source,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting paper %s: %w", o.Record.DOI, err)
	}

	winStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO windows (paper_idx, seq, start_offset, end_offset, text, terms) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing window insert: %w", err)
	}
	defer winStmt.Close()

	seqOf := make(map[[2]int]int, len(o.Windows))
	for seq, w := range o.Windows {
		termsJSON, _ := json.Marshal(w.Terms)
		if _, err := winStmt.ExecContext(ctx, idx, seq, w.Start, w.End, w.Text, string(termsJSON)); err != nil {
			return fmt.Errorf("inserting window %d of %s: %w", seq, o.Record.DOI, err)
		}
		seqOf[[2]int{w.Start, w.End}] = seq
	}

	clsStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO classifications (paper_idx, seq, label, error) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing classification insert: %w", err)
	}
	defer clsStmt.Close()

	for _, c := range o.Classifications {
		seq, ok := seqOf[[2]int{c.Window.Start, c.Window.End}]
		if !ok {
			return fmt.Errorf("classification for unknown window [%d,%d) of %s", c.Window.Start, c.Window.End, o.Record.DOI)
		}
		if _, err := clsStmt.ExecContext(ctx, idx, seq, string(c.Label), c.Error); err != nil {
			return fmt.Errorf("inserting classification %d of %s: %w", seq, o.Record.DOI, err)
		}
	}

	return tx.Commit()
}

// Outcomes returns every stored outcome in input order.
func (s *Store) Outcomes(ctx context.Context) ([]types.PaperOutcome, error) {
	_, outcomes, err := s.indexedOutcomes(ctx)
	return outcomes, err
}

// indexedOutcomes returns the stored outcomes in input order together with
// the input position of each.
func (s *Store) indexedOutcomes(ctx context.Context) ([]int, []types.PaperOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, doi, title, citation_count, state, skip_reason, detail, source FROM papers ORDER BY idx`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var (
		idxs     []int
		outcomes []types.PaperOutcome
	)
	pos := make(map[int]int)
	for rows.Next() {
		var (
			idx                                  int
			o                                    types.PaperOutcome
			title, state, reason, detail, source sql.NullString
			cites                                sql.NullInt64
		)
		if err := rows.Scan(&idx, &o.Record.DOI, &title, &cites, &state, &reason, &detail, &source); err != nil {
			return nil, nil, fmt.Errorf("scanning paper: %w", err)
		}
		o.Record.Title = title.String
		o.Record.CitationCount = int(cites.Int64)
		o.State = types.PaperState(state.String)
		o.SkipReason = types.SkipReason(reason.String)
		o.Detail = detail.String
		o.Source = source.String
		pos[idx] = len(outcomes)
		idxs = append(idxs, idx)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating papers: %w", err)
	}
	rows.Close()

	if err := s.loadWindows(ctx, outcomes, pos); err != nil {
		return nil, nil, err
	}
	return idxs, outcomes, nil
}

func (s *Store) loadWindows(ctx context.Context, outcomes []types.PaperOutcome, pos map[int]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT w.paper_idx, w.start_offset, w.end_offset, w.text, w.terms, c.label, c.error
		 FROM windows w
		 LEFT JOIN classifications c ON c.paper_idx = w.paper_idx AND c.seq = w.seq
		 ORDER BY w.paper_idx, w.seq`)
	if err != nil {
		return fmt.Errorf("querying windows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx            int
			w              types.ContextWindow
			terms          sql.NullString
			label, errText sql.NullString
		)
		if err := rows.Scan(&idx, &w.Start, &w.End, &w.Text, &terms, &label, &errText); err != nil {
			return fmt.Errorf("scanning window: %w", err)
		}
		if terms.Valid && terms.String != "" {
			if err := json.Unmarshal([]byte(terms.String), &w.Terms); err != nil {
				return fmt.Errorf("decoding window terms: %w", err)
			}
		}
		i, ok := pos[idx]
		if !ok {
			continue
		}
		o := &outcomes[i]
		w.SourceDOI = o.Record.DOI
		o.Windows = append(o.Windows, w)
		if label.Valid {
			o.Classifications = append(o.Classifications, types.Classification{
				Window: w,
				Label:  types.Label(label.String),
				Error:  errText.String,
			})
		}
	}
	return rows.Err()
}
