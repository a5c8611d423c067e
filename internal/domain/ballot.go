package domain

import (
	"strconv"
	"strings"
	"time"
)

// Candidate is a person running for a contest office in one election.
type Candidate struct {
	ID                            int64  `json:"id" db:"id"`
	WeVoteID                      string `json:"we_vote_id" db:"we_vote_id"`
	CandidateName                 string `json:"candidate_name" db:"candidate_name"`
	GoogleCivicCandidateName      string `json:"google_civic_candidate_name" db:"google_civic_candidate_name"`
	PhotoURLHTTPS                 string `json:"photo_url_https" db:"photo_url_https"`
	TwitterHandle                 string `json:"twitter_handle" db:"twitter_handle"`
	GoogleCivicElectionID         int64  `json:"google_civic_election_id" db:"google_civic_election_id"`
	StateCode                     string `json:"state_code" db:"state_code"`
	ContestOfficeID               int64  `json:"contest_office_id" db:"contest_office_id"`
	ContestOfficeWeVoteID         string `json:"contest_office_we_vote_id" db:"contest_office_we_vote_id"`
	ContestOfficeName             string `json:"contest_office_name" db:"contest_office_name"`
	PoliticianID                  int64  `json:"politician_id" db:"politician_id"`
	PoliticianWeVoteID            string `json:"politician_we_vote_id" db:"politician_we_vote_id"`
	CandidateUltimateElectionDate int64  `json:"candidate_ultimate_election_date" db:"candidate_ultimate_election_date"`
	CandidateYear                 int    `json:"candidate_year" db:"candidate_year"`
}

// DisplayName prefers the curated name over the one imported from Google Civic.
func (c *Candidate) DisplayName() string {
	if c.CandidateName != "" {
		return c.CandidateName
	}
	return c.GoogleCivicCandidateName
}

// ContestOffice is an office on the ballot.
type ContestOffice struct {
	ID                    int64  `json:"id" db:"id"`
	WeVoteID              string `json:"we_vote_id" db:"we_vote_id"`
	OfficeName            string `json:"office_name" db:"office_name"`
	RaceOfficeLevel       string `json:"race_office_level" db:"race_office_level"`
	GoogleCivicElectionID int64  `json:"google_civic_election_id" db:"google_civic_election_id"`
	StateCode             string `json:"state_code" db:"state_code"`
}

// ContestMeasure is a ballot measure.
type ContestMeasure struct {
	ID                          int64  `json:"id" db:"id"`
	WeVoteID                    string `json:"we_vote_id" db:"we_vote_id"`
	MeasureTitle                string `json:"measure_title" db:"measure_title"`
	GoogleCivicMeasureTitle     string `json:"google_civic_measure_title" db:"google_civic_measure_title"`
	GoogleCivicElectionID       int64  `json:"google_civic_election_id" db:"google_civic_election_id"`
	StateCode                   string `json:"state_code" db:"state_code"`
	MeasureUltimateElectionDate int64  `json:"measure_ultimate_election_date" db:"measure_ultimate_election_date"`
	MeasureYear                 int    `json:"measure_year" db:"measure_year"`
}

// DisplayTitle prefers the curated title over the one imported from Google Civic.
func (m *ContestMeasure) DisplayTitle() string {
	if m.MeasureTitle != "" {
		return m.MeasureTitle
	}
	return m.GoogleCivicMeasureTitle
}

// Politician is the person behind one or more candidacies.
type Politician struct {
	ID             int64  `json:"id" db:"id"`
	WeVoteID       string `json:"we_vote_id" db:"we_vote_id"`
	PoliticianName string `json:"politician_name" db:"politician_name"`
}

// Organization is a group that publishes endorsements.
type Organization struct {
	ID                    int64  `json:"id" db:"id"`
	WeVoteID              string `json:"we_vote_id" db:"we_vote_id"`
	OrganizationName      string `json:"organization_name" db:"organization_name"`
	OrganizationType      string `json:"organization_type" db:"organization_type"`
	TwitterFollowersCount int64  `json:"twitter_followers_count" db:"twitter_followers_count"`
}

// Election is identified by its Google Civic election id.
type Election struct {
	GoogleCivicElectionID int64  `json:"google_civic_election_id" db:"google_civic_election_id"`
	ElectionName          string `json:"election_name" db:"election_name"`
	ElectionDayText       string `json:"election_day_text" db:"election_day_text"` // YYYY-MM-DD
	StateCode             string `json:"state_code" db:"state_code"`
}

// ElectionDay parses ElectionDayText. ok is false when the date is missing or malformed.
func (e *Election) ElectionDay() (day time.Time, ok bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(e.ElectionDayText))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ElectionDayInt returns the election day as YYYYMMDD, or 0 when unknown.
func (e *Election) ElectionDayInt() int64 {
	day, ok := e.ElectionDay()
	if !ok {
		return 0
	}
	v, _ := strconv.ParseInt(day.Format("20060102"), 10, 64)
	return v
}

// Year returns the election year, or 0 when unknown.
func (e *Election) Year() int {
	day, ok := e.ElectionDay()
	if !ok {
		return 0
	}
	return day.Year()
}
