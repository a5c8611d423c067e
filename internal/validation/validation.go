// Package validation checks position fields entered in the admin console.
package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bcnelson/position-admin/internal/domain"
)

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// ValidateWeVoteID checks the shape of a we_vote_id: "wv", a two character
// site code, a lowercase kind and a numeric or hex suffix, all alphanumeric.
func ValidateWeVoteID(id, entityType string) error {
	rest, ok := strings.CutPrefix(id, "wv")
	if !ok {
		return fmt.Errorf("%s we_vote_id must start with 'wv'", entityType)
	}
	if len(rest) < 4 {
		return fmt.Errorf("%s we_vote_id is too short", entityType)
	}
	for _, b := range []byte(rest) {
		if !isAlpha(b) && !isNum(b) {
			return fmt.Errorf("%s we_vote_id can only contain letters and numbers", entityType)
		}
	}
	return nil
}

// ValidateStance checks that stance is one an editor may pick.
func ValidateStance(stance string) error {
	for _, s := range domain.Stances {
		if s == stance {
			return nil
		}
	}
	return fmt.Errorf("unknown stance %q", stance)
}

// ValidateStateCode checks that code is a known state or territory.
func ValidateStateCode(code string) error {
	if _, ok := domain.StateCodeMap[strings.ToUpper(code)]; !ok {
		return fmt.Errorf("unknown state code %q", code)
	}
	return nil
}

// ValidateMoreInfoURL checks that u is an absolute http or https URL.
func ValidateMoreInfoURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

// ValidatePosition checks the editable fields of p. Empty optional fields are
// not checked.
func ValidatePosition(p *domain.Position) ValidationErrors {
	var errs ValidationErrors

	if err := ValidateStance(p.Stance); err != nil {
		errs.Add("stance", p.Stance, err.Error())
	}
	if p.StateCode != "" {
		if err := ValidateStateCode(p.StateCode); err != nil {
			errs.Add("state_code", p.StateCode, err.Error())
		}
	}
	if p.GoogleCivicElectionID < 0 {
		errs.Add("google_civic_election_id", fmt.Sprint(p.GoogleCivicElectionID), "must not be negative")
	}
	if p.MoreInfoURL != "" {
		if err := ValidateMoreInfoURL(p.MoreInfoURL); err != nil {
			errs.Add("more_info_url", p.MoreInfoURL, err.Error())
		}
	}

	ids := []struct {
		field, kind, value string
	}{
		{"organization_we_vote_id", "organization", p.OrganizationWeVoteID},
		{"voter_we_vote_id", "voter", p.VoterWeVoteID},
		{"candidate_campaign_we_vote_id", "candidate", p.CandidateCampaignWeVoteID},
		{"contest_measure_we_vote_id", "measure", p.ContestMeasureWeVoteID},
	}
	for _, id := range ids {
		if id.value == "" {
			continue
		}
		if err := ValidateWeVoteID(id.value, id.kind); err != nil {
			errs.Add(id.field, id.value, err.Error())
		}
	}

	if p.CandidateCampaignWeVoteID != "" && p.ContestMeasureWeVoteID != "" {
		errs.Add("contest_measure_we_vote_id", p.ContestMeasureWeVoteID, "a position is about a candidate or a measure, not both")
	}

	return errs
}
