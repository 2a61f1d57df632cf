package main

import (
	"context"
	"database/sql"
	"fmt"
)

// statsStore is the durable side of the pipeline: one row per username,
// replaced wholesale on every successful fetch.
type statsStore interface {
	upsert(ctx context.Context, stats UserStats) error
	getUser(ctx context.Context, username string) (UserRow, bool, error)
	countUsers(ctx context.Context) (int, error)
	listUsers(ctx context.Context, q listQuery) ([]UserRow, error)
	pageUsernames(ctx context.Context, limit, offset int) ([]string, error)
	allUsernames(ctx context.Context) ([]string, error)
	deleteUser(ctx context.Context, username string) (bool, error)
	deleteAll(ctx context.Context) (int64, error)
	ping(ctx context.Context) error
}

// listQuery is a validated listing request; build one with sortColumn so
// the column and direction are always from the allow-list.
type listQuery struct {
	sortCol string
	sortDir string
	limit   int
	offset  int
}

// allowedSortCols is the full set of client-selectable sort columns. Any
// other requested value falls back to the default rather than failing.
var allowedSortCols = map[string]bool{
	"total":    true,
	"easy":     true,
	"medium":   true,
	"hard":     true,
	"ranking":  true,
	"username": true,
}

// sortColumn maps raw sort/order query values onto the allow-list,
// defaulting to total descending.
func sortColumn(sortBy, order string) (col, dir string) {
	col = "total"
	if allowedSortCols[sortBy] {
		col = sortBy
	}
	dir = "DESC"
	if order == "asc" {
		dir = "ASC"
	}
	return col, dir
}

// pgStore implements statsStore on postgres.
type pgStore struct {
	db *sql.DB
}

func newPgStore(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

// upsert inserts or replaces the row for stats.Username. Idempotent:
// repeating the same record only refreshes last_updated.
func (s *pgStore) upsert(ctx context.Context, stats UserStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leetcode_users (username, ranking, reputation, easy, medium, hard, total, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (username)
		 DO UPDATE SET
			ranking      = EXCLUDED.ranking,
			reputation   = EXCLUDED.reputation,
			easy         = EXCLUDED.easy,
			medium       = EXCLUDED.medium,
			hard         = EXCLUDED.hard,
			total        = EXCLUDED.total,
			last_updated = now()`,
		stats.Username,
		stats.Ranking,
		stats.Reputation,
		stats.Solved.Easy,
		stats.Solved.Medium,
		stats.Solved.Hard,
		stats.Solved.All,
	)
	return err
}

func (s *pgStore) getUser(ctx context.Context, username string) (UserRow, bool, error) {
	var u UserRow
	err := s.db.QueryRowContext(ctx,
		`SELECT username, ranking, reputation, easy, medium, hard, total, last_updated
		 FROM leetcode_users
		 WHERE username = $1`,
		username,
	).Scan(&u.Username, &u.Ranking, &u.Reputation, &u.Easy, &u.Medium, &u.Hard, &u.Total, &u.LastUpdated)
	if err == sql.ErrNoRows {
		return UserRow{}, false, nil
	}
	if err != nil {
		return UserRow{}, false, err
	}
	return u, true, nil
}

// countUsers counts listable rows; usernames queued but never successfully
// fetched have a NULL ranking and stay invisible.
func (s *pgStore) countUsers(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leetcode_users WHERE ranking IS NOT NULL`,
	).Scan(&total)
	return total, err
}

func (s *pgStore) listUsers(ctx context.Context, q listQuery) ([]UserRow, error) {
	// sortCol/sortDir come from the allow-list in sortColumn, never from
	// raw client input.
	query := fmt.Sprintf(
		`SELECT username, ranking, reputation, easy, medium, hard, total, last_updated
		 FROM leetcode_users
		 WHERE ranking IS NOT NULL
		 ORDER BY %s %s
		 LIMIT $1 OFFSET $2`,
		q.sortCol, q.sortDir,
	)

	rows, err := s.db.QueryContext(ctx, query, q.limit, q.offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserRow
	for rows.Next() {
		var u UserRow
		if err := rows.Scan(&u.Username, &u.Ranking, &u.Reputation, &u.Easy, &u.Medium, &u.Hard, &u.Total, &u.LastUpdated); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// pageUsernames returns the usernames of one ranked result page, used to
// pick which records a live page view refreshes.
func (s *pgStore) pageUsernames(ctx context.Context, limit, offset int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM leetcode_users
		 WHERE ranking IS NOT NULL
		 ORDER BY total DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsernames(rows)
}

func (s *pgStore) allUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM leetcode_users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsernames(rows)
}

func scanUsernames(rows *sql.Rows) ([]string, error) {
	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		usernames = append(usernames, u)
	}
	return usernames, rows.Err()
}

func (s *pgStore) deleteUser(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leetcode_users WHERE username = $1`, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *pgStore) deleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leetcode_users`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *pgStore) ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
