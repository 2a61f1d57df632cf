package main

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the upstream reports no matched user: the
// username does not exist or the profile is private.
var ErrNotFound = errors.New("user not found or profile is private")

// UpstreamError carries GraphQL-level error messages returned by the
// upstream alongside an absent matched user.
type UpstreamError struct {
	Messages []string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream errors: %s", strings.Join(e.Messages, "; "))
}

// rawProfile mirrors the upstream GraphQL response envelope.
type rawProfile struct {
	Data struct {
		MatchedUser *matchedUser `json:"matchedUser"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type matchedUser struct {
	Username string `json:"username"`
	Profile  struct {
		Ranking    *int `json:"ranking"`
		Reputation *int `json:"reputation"`
	} `json:"profile"`
	SubmitStats struct {
		ACSubmissionNum []submissionCount `json:"acSubmissionNum"`
	} `json:"submitStats"`
}

type submissionCount struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

// normalize converts a raw upstream response into a UserStats record.
// Unknown difficulty labels are ignored; missing tiers stay at 0. Pure:
// no I/O, same input always yields the same output.
func normalize(raw *rawProfile) (UserStats, error) {
	matched := raw.Data.MatchedUser
	if matched == nil {
		if len(raw.Errors) > 0 {
			msgs := make([]string, 0, len(raw.Errors))
			for _, e := range raw.Errors {
				msgs = append(msgs, e.Message)
			}
			return UserStats{}, &UpstreamError{Messages: msgs}
		}
		return UserStats{}, ErrNotFound
	}

	stats := UserStats{
		Username:   matched.Username,
		Ranking:    matched.Profile.Ranking,
		Reputation: matched.Profile.Reputation,
	}
	for _, item := range matched.SubmitStats.ACSubmissionNum {
		switch item.Difficulty {
		case "All":
			stats.Solved.All = item.Count
		case "Easy":
			stats.Solved.Easy = item.Count
		case "Medium":
			stats.Solved.Medium = item.Count
		case "Hard":
			stats.Solved.Hard = item.Count
		}
	}
	return stats, nil
}
