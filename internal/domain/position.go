package domain

import "time"

// Stance values recorded on a position.
const (
	StanceSupport         = "SUPPORT"
	StanceOppose          = "OPPOSE"
	StanceInformationOnly = "INFORMATION_ONLY"
	StanceNoStance        = "NO_STANCE"
	StanceStillDeciding   = "STILL_DECIDING"
	StancePercentRating   = "PERCENT_RATING"

	// AnyStance disables stance filtering.
	AnyStance = "ANY_STANCE"
)

// SpeakerTypeUnknown marks a position whose speaker has not been classified yet.
const SpeakerTypeUnknown = "U"

// Stances lists the stances an editor may pick.
var Stances = []string{
	StanceSupport,
	StanceOppose,
	StanceInformationOnly,
	StanceNoStance,
	StanceStillDeciding,
	StancePercentRating,
}

// Visibility selects between the public and the friends-only position tables.
type Visibility int

const (
	Public Visibility = iota
	FriendsOnly
)

// Table returns the table holding positions with this visibility.
func (v Visibility) Table() string {
	if v == FriendsOnly {
		return "positions_for_friends"
	}
	return "positions"
}

func (v Visibility) String() string {
	if v == FriendsOnly {
		return "friends-only"
	}
	return "public"
}

// Position is a recorded stance by a voter, organization or public figure on a
// candidate or ballot measure. Public and friends-only positions share this shape.
type Position struct {
	ID       int64  `json:"id" db:"id"`
	WeVoteID string `json:"we_vote_id" db:"we_vote_id"`

	BallotItemDisplayName   string `json:"ballot_item_display_name" db:"ballot_item_display_name"`
	BallotItemImageURLHTTPS string `json:"ballot_item_image_url_https" db:"ballot_item_image_url_https"`
	BallotItemTwitterHandle string `json:"ballot_item_twitter_handle" db:"ballot_item_twitter_handle"`

	SpeakerDisplayName   string `json:"speaker_display_name" db:"speaker_display_name"`
	SpeakerImageURLHTTPS string `json:"speaker_image_url_https" db:"speaker_image_url_https"`
	SpeakerTwitterHandle string `json:"speaker_twitter_handle" db:"speaker_twitter_handle"`
	SpeakerType          string `json:"speaker_type" db:"speaker_type"`

	DateEntered     time.Time `json:"date_entered" db:"date_entered"`
	DateLastChanged time.Time `json:"date_last_changed" db:"date_last_changed"`

	OrganizationID        int64  `json:"organization_id" db:"organization_id"`
	OrganizationWeVoteID  string `json:"organization_we_vote_id" db:"organization_we_vote_id"`
	VoterID               int64  `json:"voter_id" db:"voter_id"`
	VoterWeVoteID         string `json:"voter_we_vote_id" db:"voter_we_vote_id"`
	PublicFigureWeVoteID  string `json:"public_figure_we_vote_id" db:"public_figure_we_vote_id"`
	GoogleCivicElectionID int64  `json:"google_civic_election_id" db:"google_civic_election_id"`
	StateCode             string `json:"state_code" db:"state_code"`

	VoteSmartRatingID   string `json:"vote_smart_rating_id" db:"vote_smart_rating_id"`
	VoteSmartTimeSpan   string `json:"vote_smart_time_span" db:"vote_smart_time_span"`
	VoteSmartRating     string `json:"vote_smart_rating" db:"vote_smart_rating"`
	VoteSmartRatingName string `json:"vote_smart_rating_name" db:"vote_smart_rating_name"`

	ContestOfficeID       int64  `json:"contest_office_id" db:"contest_office_id"`
	ContestOfficeWeVoteID string `json:"contest_office_we_vote_id" db:"contest_office_we_vote_id"`
	ContestOfficeName     string `json:"contest_office_name" db:"contest_office_name"`
	RaceOfficeLevel       string `json:"race_office_level" db:"race_office_level"`

	CandidateCampaignID       int64  `json:"candidate_campaign_id" db:"candidate_campaign_id"`
	CandidateCampaignWeVoteID string `json:"candidate_campaign_we_vote_id" db:"candidate_campaign_we_vote_id"`
	GoogleCivicCandidateName  string `json:"google_civic_candidate_name" db:"google_civic_candidate_name"`

	PoliticianID               int64  `json:"politician_id" db:"politician_id"`
	PoliticianWeVoteID         string `json:"politician_we_vote_id" db:"politician_we_vote_id"`
	PoliticianWeVoteIDAnalyzed bool   `json:"politician_we_vote_id_analyzed" db:"politician_we_vote_id_analyzed"`

	ContestMeasureID        int64  `json:"contest_measure_id" db:"contest_measure_id"`
	ContestMeasureWeVoteID  string `json:"contest_measure_we_vote_id" db:"contest_measure_we_vote_id"`
	GoogleCivicMeasureTitle string `json:"google_civic_measure_title" db:"google_civic_measure_title"`

	Stance                       string `json:"stance" db:"stance"`
	PositionUltimateElectionDate int64  `json:"position_ultimate_election_date" db:"position_ultimate_election_date"` // YYYYMMDD
	PositionYear                 int    `json:"position_year" db:"position_year"`

	StatementText         string `json:"statement_text" db:"statement_text"`
	StatementHTML         string `json:"statement_html" db:"statement_html"`
	TwitterFollowersCount int64  `json:"twitter_followers_count" db:"twitter_followers_count"`
	MoreInfoURL           string `json:"more_info_url" db:"more_info_url"`

	FromScraper                bool  `json:"from_scraper" db:"from_scraper"`
	OrganizationCertified      bool  `json:"organization_certified" db:"organization_certified"`
	VolunteerCertified         bool  `json:"volunteer_certified" db:"volunteer_certified"`
	VoterEnteringPosition      int64 `json:"voter_entering_position" db:"voter_entering_position"`
	TweetSourceID              int64 `json:"tweet_source_id" db:"tweet_source_id"`
	TwitterUserEnteredPosition int64 `json:"twitter_user_entered_position" db:"twitter_user_entered_position"`
	IsPrivateCitizen           bool  `json:"is_private_citizen" db:"is_private_citizen"`
}

// IsCandidatePosition reports whether the position is about a candidate.
func (p *Position) IsCandidatePosition() bool {
	return p.CandidateCampaignWeVoteID != ""
}

// IsMeasurePosition reports whether the position is about a ballot measure.
func (p *Position) IsMeasurePosition() bool {
	return p.ContestMeasureWeVoteID != ""
}

// HasStatement reports whether the speaker left commentary.
func (p *Position) HasStatement() bool {
	return p.StatementText != ""
}

// SpeakerWeVoteID returns the identifier of whoever took the position.
func (p *Position) SpeakerWeVoteID() string {
	switch {
	case p.OrganizationWeVoteID != "":
		return p.OrganizationWeVoteID
	case p.PublicFigureWeVoteID != "":
		return p.PublicFigureWeVoteID
	default:
		return p.VoterWeVoteID
	}
}

// BallotItemWeVoteID returns the candidate or measure the position is about.
func (p *Position) BallotItemWeVoteID() string {
	if p.CandidateCampaignWeVoteID != "" {
		return p.CandidateCampaignWeVoteID
	}
	return p.ContestMeasureWeVoteID
}
