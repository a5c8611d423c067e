package web

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// newPositionWeVoteID generates a we_vote_id for a position created in the
// admin console.
func newPositionWeVoteID() string {
	return "wv00pos" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// parseInt parses a string to int with a default value.
func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

// parseInt64 parses a string to int64, returning 0 when it is not a number.
func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// positive reports whether a query flag is set to a true-ish value.
func positive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// listURL builds a link to the position list with the given parameters.
// Zero and empty values are left out.
func listURL(electionID int64, stateCode string, extra ...string) string {
	q := url.Values{}
	if electionID != 0 {
		q.Set("google_civic_election_id", strconv.FormatInt(electionID, 10))
	}
	if stateCode != "" {
		q.Set("state_code", stateCode)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			q.Set(extra[i], extra[i+1])
		}
	}
	if len(q) == 0 {
		return "/positions"
	}
	return "/positions?" + q.Encode()
}
