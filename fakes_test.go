package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeFetcher scripts upstream responses per username and counts attempts.
type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(username string, call int) (*rawProfile, error)
}

func newFakeFetcher(fn func(username string, call int) (*rawProfile, error)) *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), fn: fn}
}

func (f *fakeFetcher) fetchProfile(ctx context.Context, username string) (*rawProfile, error) {
	f.mu.Lock()
	f.calls[username]++
	n := f.calls[username]
	f.mu.Unlock()
	return f.fn(username, n)
}

func (f *fakeFetcher) callCount(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[username]
}

// profileResponse builds a successful upstream payload.
func profileResponse(username string, ranking, reputation, easy, medium, hard int) *rawProfile {
	raw := &rawProfile{}
	raw.Data.MatchedUser = &matchedUser{Username: username}
	raw.Data.MatchedUser.Profile.Ranking = &ranking
	raw.Data.MatchedUser.Profile.Reputation = &reputation
	raw.Data.MatchedUser.SubmitStats.ACSubmissionNum = []submissionCount{
		{Difficulty: "All", Count: easy + medium + hard},
		{Difficulty: "Easy", Count: easy},
		{Difficulty: "Medium", Count: medium},
		{Difficulty: "Hard", Count: hard},
	}
	return raw
}

// notFoundResponse builds the "matchedUser: null" payload.
func notFoundResponse() *rawProfile {
	return &rawProfile{}
}

// fakeStore is an in-memory statsStore for coordinator and handler tests.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]UserRow
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]UserRow)}
}

func (s *fakeStore) upsert(ctx context.Context, stats UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.rows[stats.Username] = UserRow{
		Username:    stats.Username,
		Ranking:     stats.Ranking,
		Reputation:  stats.Reputation,
		Easy:        stats.Solved.Easy,
		Medium:      stats.Solved.Medium,
		Hard:        stats.Solved.Hard,
		Total:       stats.Solved.All,
		LastUpdated: time.Now(),
	}
	return nil
}

func (s *fakeStore) getUser(ctx context.Context, username string) (UserRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[username]
	return row, ok, nil
}

func (s *fakeStore) ranked() []UserRow {
	var rows []UserRow
	for _, row := range s.rows {
		if row.Ranking != nil {
			rows = append(rows, row)
		}
	}
	return rows
}

func (s *fakeStore) countUsers(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ranked()), nil
}

func (s *fakeStore) listUsers(ctx context.Context, q listQuery) ([]UserRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.ranked()
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if q.sortDir == "DESC" {
			a, b = b, a
		}
		switch q.sortCol {
		case "easy":
			return a.Easy < b.Easy
		case "medium":
			return a.Medium < b.Medium
		case "hard":
			return a.Hard < b.Hard
		case "ranking":
			return *a.Ranking < *b.Ranking
		case "username":
			return a.Username < b.Username
		default:
			return a.Total < b.Total
		}
	})

	if q.offset >= len(rows) {
		return nil, nil
	}
	rows = rows[q.offset:]
	if q.limit < len(rows) {
		rows = rows[:q.limit]
	}
	return rows, nil
}

func (s *fakeStore) pageUsernames(ctx context.Context, limit, offset int) ([]string, error) {
	rows, err := s.listUsers(ctx, listQuery{sortCol: "total", sortDir: "DESC", limit: limit, offset: offset})
	if err != nil {
		return nil, err
	}
	usernames := make([]string, 0, len(rows))
	for _, row := range rows {
		usernames = append(usernames, row.Username)
	}
	return usernames, nil
}

func (s *fakeStore) allUsernames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usernames := make([]string, 0, len(s.rows))
	for username := range s.rows {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	return usernames, nil
}

func (s *fakeStore) deleteUser(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[username]
	delete(s.rows, username)
	return ok, nil
}

func (s *fakeStore) deleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.rows))
	s.rows = make(map[string]UserRow)
	return n, nil
}

func (s *fakeStore) ping(ctx context.Context) error { return nil }

func (s *fakeStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// seedRows inserts n ranked rows named user01..userNN with total = 10*i.
func seedRows(s *fakeStore, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= n; i++ {
		rank := i
		username := fmt.Sprintf("user%02d", i)
		s.rows[username] = UserRow{
			Username:    username,
			Ranking:     &rank,
			Easy:        i,
			Medium:      i,
			Hard:        i,
			Total:       10 * i,
			LastUpdated: time.Now(),
		}
	}
}
