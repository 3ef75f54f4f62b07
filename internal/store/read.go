package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const exchangeColumns = `run_id, seq, prompt_hash, prompt, reply, error, generator`

// ReadExchanges returns every exchange recorded for a prompt hash, across
// runs, ordered by run_id then seq.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadExchanges(ctx context.Context, promptHash string) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+exchangeColumns+`
		FROM exchanges
		WHERE prompt_hash = ?
		ORDER BY run_id COLLATE BINARY ASC, seq ASC
	`, promptHash)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	return collectExchanges(rows)
}

// ReadRun returns the exchanges of one run in seq order.
//
// Returns an empty slice (not nil) if the run is unknown.
func (s *Store) ReadRun(ctx context.Context, runID string) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+exchangeColumns+`
		FROM exchanges
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return collectExchanges(rows)
}

// CountExchanges returns the total number of recorded exchanges.
func (s *Store) CountExchanges(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exchanges: %w", err)
	}
	return n, nil
}

// ListRuns summarises every recorded run, ordered by run id. Run ids are
// UUIDv7, so this is also creation order.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id,
		       COUNT(*),
		       SUM(CASE WHEN error != '' THEN 1 ELSE 0 END),
		       MAX(seq)
		FROM exchanges
		GROUP BY run_id
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Exchanges, &r.Failures, &r.LastSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastRun returns the most recent run id. ok is false on an empty log.
func (s *Store) LastRun(ctx context.Context) (runID string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT run_id FROM exchanges ORDER BY run_id COLLATE BINARY DESC LIMIT 1
	`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("last run: %w", err)
	}
	return runID, true, nil
}

func collectExchanges(rows *sql.Rows) ([]Exchange, error) {
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

func scanExchange(rows *sql.Rows) (Exchange, error) {
	var ex Exchange
	var replyJSON string
	if err := rows.Scan(&ex.RunID, &ex.Seq, &ex.PromptHash, &ex.Prompt, &replyJSON, &ex.Error, &ex.Generator); err != nil {
		return Exchange{}, fmt.Errorf("scan exchange: %w", err)
	}
	reply, err := unmarshalReply(replyJSON)
	if err != nil {
		return Exchange{}, err
	}
	ex.Reply = reply
	return ex, nil
}
