package main

import "time"

// SolvedCount holds accepted-submission counts per difficulty tier.
// All four tiers are always present; tiers missing upstream default to 0.
type SolvedCount struct {
	All    int `json:"All"`
	Easy   int `json:"Easy"`
	Medium int `json:"Medium"`
	Hard   int `json:"Hard"`
}

// UserStats is the canonical per-user record produced by normalize and
// written to the cache and the store together. Ranking and Reputation are
// nil when the upstream profile omits them.
type UserStats struct {
	Username   string      `json:"username"`
	Ranking    *int        `json:"ranking"`
	Reputation *int        `json:"reputation"`
	Solved     SolvedCount `json:"solved"`
}

// UserRow is the durable counterpart of UserStats as stored in the
// leetcode_users table.
type UserRow struct {
	Username    string    `json:"username"`
	Ranking     *int      `json:"ranking"`
	Reputation  *int      `json:"reputation"`
	Easy        int       `json:"easy"`
	Medium      int       `json:"medium"`
	Hard        int       `json:"hard"`
	Total       int       `json:"total"`
	LastUpdated time.Time `json:"last_updated"`
}

// cacheEntry pairs a record with its expiry; expiry is checked lazily on read.
type cacheEntry struct {
	stats     UserStats
	expiresAt time.Time
}
