package domain

import (
	"fmt"
	"time"
)

// SyncTimeLayout is the timestamp format used in the position export.
const SyncTimeLayout = "2006-01-02 15:04:05"

// PositionSyncRecord is the projection of a public position exchanged
// between servers. Database ids are not exported; peers relink by we_vote_id.
type PositionSyncRecord struct {
	WeVoteID                     string `json:"we_vote_id"`
	BallotItemDisplayName        string `json:"ballot_item_display_name"`
	BallotItemImageURLHTTPS      string `json:"ballot_item_image_url_https"`
	BallotItemTwitterHandle      string `json:"ballot_item_twitter_handle"`
	SpeakerDisplayName           string `json:"speaker_display_name"`
	SpeakerImageURLHTTPS         string `json:"speaker_image_url_https"`
	SpeakerTwitterHandle         string `json:"speaker_twitter_handle"`
	DateEntered                  string `json:"date_entered"`
	DateLastChanged              string `json:"date_last_changed"`
	OrganizationWeVoteID         string `json:"organization_we_vote_id"`
	VoterWeVoteID                string `json:"voter_we_vote_id"`
	PublicFigureWeVoteID         string `json:"public_figure_we_vote_id"`
	GoogleCivicElectionID        int64  `json:"google_civic_election_id"`
	StateCode                    string `json:"state_code"`
	VoteSmartRatingID            string `json:"vote_smart_rating_id"`
	VoteSmartTimeSpan            string `json:"vote_smart_time_span"`
	VoteSmartRating              string `json:"vote_smart_rating"`
	VoteSmartRatingName          string `json:"vote_smart_rating_name"`
	ContestOfficeWeVoteID        string `json:"contest_office_we_vote_id"`
	RaceOfficeLevel              string `json:"race_office_level"`
	CandidateCampaignWeVoteID    string `json:"candidate_campaign_we_vote_id"`
	GoogleCivicCandidateName     string `json:"google_civic_candidate_name"`
	PoliticianWeVoteID           string `json:"politician_we_vote_id"`
	ContestMeasureWeVoteID       string `json:"contest_measure_we_vote_id"`
	SpeakerType                  string `json:"speaker_type"`
	Stance                       string `json:"stance"`
	PositionUltimateElectionDate int64  `json:"position_ultimate_election_date"`
	PositionYear                 int    `json:"position_year"`
	StatementText                string `json:"statement_text"`
	StatementHTML                string `json:"statement_html"`
	TwitterFollowersCount        int64  `json:"twitter_followers_count"`
	MoreInfoURL                  string `json:"more_info_url"`
	FromScraper                  bool   `json:"from_scraper"`
	OrganizationCertified        bool   `json:"organization_certified"`
	VolunteerCertified           bool   `json:"volunteer_certified"`
	VoterEnteringPosition        int64  `json:"voter_entering_position"`
	TweetSourceID                int64  `json:"tweet_source_id"`
	TwitterUserEnteredPosition   int64  `json:"twitter_user_entered_position"`
	IsPrivateCitizen             bool   `json:"is_private_citizen"`
}

// NewPositionSyncRecord projects a position for export.
func NewPositionSyncRecord(p *Position) PositionSyncRecord {
	return PositionSyncRecord{
		WeVoteID:                     p.WeVoteID,
		BallotItemDisplayName:        p.BallotItemDisplayName,
		BallotItemImageURLHTTPS:      p.BallotItemImageURLHTTPS,
		BallotItemTwitterHandle:      p.BallotItemTwitterHandle,
		SpeakerDisplayName:           p.SpeakerDisplayName,
		SpeakerImageURLHTTPS:         p.SpeakerImageURLHTTPS,
		SpeakerTwitterHandle:         p.SpeakerTwitterHandle,
		DateEntered:                  formatSyncTime(p.DateEntered),
		DateLastChanged:              formatSyncTime(p.DateLastChanged),
		OrganizationWeVoteID:         p.OrganizationWeVoteID,
		VoterWeVoteID:                p.VoterWeVoteID,
		PublicFigureWeVoteID:         p.PublicFigureWeVoteID,
		GoogleCivicElectionID:        p.GoogleCivicElectionID,
		StateCode:                    p.StateCode,
		VoteSmartRatingID:            p.VoteSmartRatingID,
		VoteSmartTimeSpan:            p.VoteSmartTimeSpan,
		VoteSmartRating:              p.VoteSmartRating,
		VoteSmartRatingName:          p.VoteSmartRatingName,
		ContestOfficeWeVoteID:        p.ContestOfficeWeVoteID,
		RaceOfficeLevel:              p.RaceOfficeLevel,
		CandidateCampaignWeVoteID:    p.CandidateCampaignWeVoteID,
		GoogleCivicCandidateName:     p.GoogleCivicCandidateName,
		PoliticianWeVoteID:           p.PoliticianWeVoteID,
		ContestMeasureWeVoteID:       p.ContestMeasureWeVoteID,
		SpeakerType:                  p.SpeakerType,
		Stance:                       p.Stance,
		PositionUltimateElectionDate: p.PositionUltimateElectionDate,
		PositionYear:                 p.PositionYear,
		StatementText:                p.StatementText,
		StatementHTML:                p.StatementHTML,
		TwitterFollowersCount:        p.TwitterFollowersCount,
		MoreInfoURL:                  p.MoreInfoURL,
		FromScraper:                  p.FromScraper,
		OrganizationCertified:        p.OrganizationCertified,
		VolunteerCertified:           p.VolunteerCertified,
		VoterEnteringPosition:        p.VoterEnteringPosition,
		TweetSourceID:                p.TweetSourceID,
		TwitterUserEnteredPosition:   p.TwitterUserEnteredPosition,
		IsPrivateCitizen:             p.IsPrivateCitizen,
	}
}

// HasBallotItem reports whether the record names a candidate or a measure.
func (r *PositionSyncRecord) HasBallotItem() bool {
	return r.CandidateCampaignWeVoteID != "" || r.ContestMeasureWeVoteID != ""
}

// ApplyTo copies the record onto p. Local database ids are left untouched.
func (r *PositionSyncRecord) ApplyTo(p *Position) error {
	entered, err := parseSyncTime(r.DateEntered)
	if err != nil {
		return fmt.Errorf("date_entered: %w", err)
	}
	changed, err := parseSyncTime(r.DateLastChanged)
	if err != nil {
		return fmt.Errorf("date_last_changed: %w", err)
	}

	p.WeVoteID = r.WeVoteID
	p.BallotItemDisplayName = r.BallotItemDisplayName
	p.BallotItemImageURLHTTPS = r.BallotItemImageURLHTTPS
	p.BallotItemTwitterHandle = r.BallotItemTwitterHandle
	p.SpeakerDisplayName = r.SpeakerDisplayName
	p.SpeakerImageURLHTTPS = r.SpeakerImageURLHTTPS
	p.SpeakerTwitterHandle = r.SpeakerTwitterHandle
	p.DateEntered = entered
	p.DateLastChanged = changed
	p.OrganizationWeVoteID = r.OrganizationWeVoteID
	p.VoterWeVoteID = r.VoterWeVoteID
	p.PublicFigureWeVoteID = r.PublicFigureWeVoteID
	p.GoogleCivicElectionID = r.GoogleCivicElectionID
	p.StateCode = r.StateCode
	p.VoteSmartRatingID = r.VoteSmartRatingID
	p.VoteSmartTimeSpan = r.VoteSmartTimeSpan
	p.VoteSmartRating = r.VoteSmartRating
	p.VoteSmartRatingName = r.VoteSmartRatingName
	p.ContestOfficeWeVoteID = r.ContestOfficeWeVoteID
	p.RaceOfficeLevel = r.RaceOfficeLevel
	p.CandidateCampaignWeVoteID = r.CandidateCampaignWeVoteID
	p.GoogleCivicCandidateName = r.GoogleCivicCandidateName
	p.PoliticianWeVoteID = r.PoliticianWeVoteID
	p.ContestMeasureWeVoteID = r.ContestMeasureWeVoteID
	p.SpeakerType = r.SpeakerType
	p.Stance = r.Stance
	p.PositionUltimateElectionDate = r.PositionUltimateElectionDate
	p.PositionYear = r.PositionYear
	p.StatementText = r.StatementText
	p.StatementHTML = r.StatementHTML
	p.TwitterFollowersCount = r.TwitterFollowersCount
	p.MoreInfoURL = r.MoreInfoURL
	p.FromScraper = r.FromScraper
	p.OrganizationCertified = r.OrganizationCertified
	p.VolunteerCertified = r.VolunteerCertified
	p.VoterEnteringPosition = r.VoterEnteringPosition
	p.TweetSourceID = r.TweetSourceID
	p.TwitterUserEnteredPosition = r.TwitterUserEnteredPosition
	p.IsPrivateCitizen = r.IsPrivateCitizen
	return nil
}

func formatSyncTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(SyncTimeLayout)
}

func parseSyncTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(SyncTimeLayout, s, time.UTC)
}

// ImportResult summarizes one pull from the master server.
type ImportResult struct {
	Success           bool   `json:"success"`
	Status            string `json:"status"`
	Saved             int    `json:"saved"`
	Updated           int    `json:"updated"`
	DuplicatesRemoved int    `json:"duplicates_removed"`
	NotProcessed      int    `json:"not_processed"`
}

// SortingDatesResult counts the rows touched while regenerating the
// denormalized election dates used to sort positions.
type SortingDatesResult struct {
	CandidateToOfficeLinkUpdateCount        int
	CandidateUltimateUpdateCount            int
	CandidateYearUpdateCount                int
	ContestMeasureUpdateCount               int
	FriendsPositionYearCandidateUpdateCount int
	FriendsPositionYearMeasureUpdateCount   int
	FriendsUltimateCandidateUpdateCount     int
	FriendsUltimateMeasureUpdateCount       int
	MeasureUltimateUpdateCount              int
	MeasureYearUpdateCount                  int
	PublicPositionYearCandidateUpdateCount  int
	PublicPositionYearMeasureUpdateCount    int
	PublicUltimateCandidateUpdateCount      int
	PublicUltimateMeasureUpdateCount        int
	Status                                  string
}

func (r *SortingDatesResult) String() string {
	return fmt.Sprintf("candidate_to_office_link_update_count: %d, "+
		"candidate_ultimate_update_count: %d, "+
		"candidate_year_update_count: %d, "+
		"contest_measure_update_count: %d, "+
		"friends_position_year_candidate_update_count: %d, "+
		"friends_position_year_measure_update_count: %d, "+
		"friends_ultimate_candidate_update_count: %d, "+
		"friends_ultimate_measure_update_count: %d, "+
		"measure_ultimate_update_count: %d, "+
		"measure_year_update_count: %d, "+
		"public_position_year_candidate_update_count: %d, "+
		"public_position_year_measure_update_count: %d, "+
		"public_ultimate_candidate_update_count: %d, "+
		"public_ultimate_measure_update_count: %d, "+
		"status: %s",
		r.CandidateToOfficeLinkUpdateCount,
		r.CandidateUltimateUpdateCount,
		r.CandidateYearUpdateCount,
		r.ContestMeasureUpdateCount,
		r.FriendsPositionYearCandidateUpdateCount,
		r.FriendsPositionYearMeasureUpdateCount,
		r.FriendsUltimateCandidateUpdateCount,
		r.FriendsUltimateMeasureUpdateCount,
		r.MeasureUltimateUpdateCount,
		r.MeasureYearUpdateCount,
		r.PublicPositionYearCandidateUpdateCount,
		r.PublicPositionYearMeasureUpdateCount,
		r.PublicUltimateCandidateUpdateCount,
		r.PublicUltimateMeasureUpdateCount,
		r.Status)
}
