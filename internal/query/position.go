// Package query turns admin list parameters into position filters that can be
// rendered as SQL or evaluated against a position in memory.
package query

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/bcnelson/position-admin/internal/domain"
)

// ElectionScope limits positions to a set of elections. A position is in scope
// when its election is listed or when it is about one of the listed candidates.
// An empty scope matches nothing.
type ElectionScope struct {
	ElectionIDs        []int64
	CandidateWeVoteIDs []string
}

// PositionFilter is a conjunction of optional conditions. Zero values disable
// a condition.
type PositionFilter struct {
	// Elections restricts by election; nil matches every election.
	Elections *ElectionScope

	// StateCode is compared case-insensitively.
	StateCode string

	// Search is split on whitespace. Every word must match at least one
	// searchable field.
	Search string

	OrganizationWeVoteID   string
	SpeakerType            string
	ContestOfficeWeVoteID  string
	ContestMeasureWeVoteID string

	// CandidateWeVoteIDIn restricts to the listed candidates when non-nil.
	CandidateWeVoteIDIn []string

	// Stance is compared case-insensitively. Empty or ANY_STANCE disables it.
	Stance string

	RequireOrganization       bool
	RequireCandidate          bool
	RequireMeasure            bool
	MissingCandidateID        bool
	MissingMeasureID          bool
	MissingPoliticianWeVoteID bool
	NotPoliticianAnalyzed     bool
	WithStatement             bool
}

type searchField struct {
	column   string
	contains bool
	value    func(*domain.Position) string
}

var searchFields = []searchField{
	{"state_code", true, func(p *domain.Position) string { return p.StateCode }},
	{"we_vote_id", false, func(p *domain.Position) string { return p.WeVoteID }},
	{"candidate_campaign_we_vote_id", false, func(p *domain.Position) string { return p.CandidateCampaignWeVoteID }},
	{"contest_measure_we_vote_id", false, func(p *domain.Position) string { return p.ContestMeasureWeVoteID }},
	{"contest_office_we_vote_id", false, func(p *domain.Position) string { return p.ContestOfficeWeVoteID }},
	{"organization_we_vote_id", false, func(p *domain.Position) string { return p.OrganizationWeVoteID }},
	{"voter_we_vote_id", false, func(p *domain.Position) string { return p.VoterWeVoteID }},
	{"google_civic_measure_title", true, func(p *domain.Position) string { return p.GoogleCivicMeasureTitle }},
	{"speaker_display_name", true, func(p *domain.Position) string { return p.SpeakerDisplayName }},
	{"ballot_item_display_name", true, func(p *domain.Position) string { return p.BallotItemDisplayName }},
}

// SearchColumns returns the columns a search word is matched against.
// Friends-only positions are not searched by contest office.
func SearchColumns(vis domain.Visibility) []string {
	fields := fieldsFor(vis)
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

func fieldsFor(vis domain.Visibility) []searchField {
	if vis == domain.Public {
		return searchFields
	}
	fields := make([]searchField, 0, len(searchFields)-1)
	for _, f := range searchFields {
		if f.column == "contest_office_we_vote_id" {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// SearchWords splits a search string into words.
func SearchWords(search string) []string {
	return strings.Fields(search)
}

// Expression renders the filter as a goqu expression for the table that holds
// positions with the given visibility.
func (f *PositionFilter) Expression(vis domain.Visibility) exp.ExpressionList {
	var exprs []exp.Expression

	if f.Elections != nil {
		exprs = append(exprs, f.Elections.expression())
	}
	if f.StateCode != "" {
		exprs = append(exprs, iexact("state_code", f.StateCode))
	}
	if f.OrganizationWeVoteID != "" {
		exprs = append(exprs, goqu.C("organization_we_vote_id").Eq(f.OrganizationWeVoteID))
	}
	if f.SpeakerType != "" {
		exprs = append(exprs, goqu.C("speaker_type").Eq(f.SpeakerType))
	}
	if f.ContestOfficeWeVoteID != "" {
		exprs = append(exprs, goqu.C("contest_office_we_vote_id").Eq(f.ContestOfficeWeVoteID))
	}
	if f.ContestMeasureWeVoteID != "" {
		exprs = append(exprs, goqu.C("contest_measure_we_vote_id").Eq(f.ContestMeasureWeVoteID))
	}
	if f.CandidateWeVoteIDIn != nil {
		exprs = append(exprs, inStrings("candidate_campaign_we_vote_id", f.CandidateWeVoteIDIn))
	}
	if f.stanceActive() {
		exprs = append(exprs, iexact("stance", f.Stance))
	}
	if f.RequireOrganization {
		exprs = append(exprs, goqu.C("organization_we_vote_id").Neq(""))
	}
	if f.RequireCandidate {
		exprs = append(exprs, goqu.C("candidate_campaign_we_vote_id").Neq(""))
	}
	if f.RequireMeasure {
		exprs = append(exprs, goqu.C("contest_measure_we_vote_id").Neq(""))
	}
	if f.MissingCandidateID {
		exprs = append(exprs, goqu.C("candidate_campaign_id").Eq(0))
	}
	if f.MissingMeasureID {
		exprs = append(exprs, goqu.C("contest_measure_id").Eq(0))
	}
	if f.MissingPoliticianWeVoteID {
		exprs = append(exprs, goqu.C("politician_we_vote_id").Eq(""))
	}
	if f.NotPoliticianAnalyzed {
		exprs = append(exprs, goqu.C("politician_we_vote_id_analyzed").IsFalse())
	}
	if f.WithStatement {
		exprs = append(exprs, goqu.C("statement_text").Neq(""))
	}

	fields := fieldsFor(vis)
	for _, word := range SearchWords(f.Search) {
		anyField := make([]exp.Expression, 0, len(fields))
		for _, sf := range fields {
			if sf.contains {
				anyField = append(anyField, icontains(sf.column, word))
			} else {
				anyField = append(anyField, iexact(sf.column, word))
			}
		}
		exprs = append(exprs, goqu.Or(anyField...))
	}

	return goqu.And(exprs...)
}

// Match reports whether p satisfies the filter. It agrees with Expression.
func (f *PositionFilter) Match(vis domain.Visibility, p *domain.Position) bool {
	if f.Elections != nil && !f.Elections.match(p) {
		return false
	}
	if f.StateCode != "" && !foldEqual(p.StateCode, f.StateCode) {
		return false
	}
	if f.OrganizationWeVoteID != "" && p.OrganizationWeVoteID != f.OrganizationWeVoteID {
		return false
	}
	if f.SpeakerType != "" && p.SpeakerType != f.SpeakerType {
		return false
	}
	if f.ContestOfficeWeVoteID != "" && p.ContestOfficeWeVoteID != f.ContestOfficeWeVoteID {
		return false
	}
	if f.ContestMeasureWeVoteID != "" && p.ContestMeasureWeVoteID != f.ContestMeasureWeVoteID {
		return false
	}
	if f.CandidateWeVoteIDIn != nil && !containsString(f.CandidateWeVoteIDIn, p.CandidateCampaignWeVoteID) {
		return false
	}
	if f.stanceActive() && !foldEqual(p.Stance, f.Stance) {
		return false
	}
	if f.RequireOrganization && p.OrganizationWeVoteID == "" {
		return false
	}
	if f.RequireCandidate && p.CandidateCampaignWeVoteID == "" {
		return false
	}
	if f.RequireMeasure && p.ContestMeasureWeVoteID == "" {
		return false
	}
	if f.MissingCandidateID && p.CandidateCampaignID != 0 {
		return false
	}
	if f.MissingMeasureID && p.ContestMeasureID != 0 {
		return false
	}
	if f.MissingPoliticianWeVoteID && p.PoliticianWeVoteID != "" {
		return false
	}
	if f.NotPoliticianAnalyzed && p.PoliticianWeVoteIDAnalyzed {
		return false
	}
	if f.WithStatement && p.StatementText == "" {
		return false
	}

	fields := fieldsFor(vis)
	for _, word := range SearchWords(f.Search) {
		if !matchesAnyField(fields, p, word) {
			return false
		}
	}
	return true
}

func (f *PositionFilter) stanceActive() bool {
	return f.Stance != "" && f.Stance != domain.AnyStance
}

func (s *ElectionScope) expression() exp.Expression {
	var either []exp.Expression
	if len(s.ElectionIDs) > 0 {
		either = append(either, goqu.C("google_civic_election_id").In(s.ElectionIDs))
	}
	if ids := nonEmpty(s.CandidateWeVoteIDs); len(ids) > 0 {
		either = append(either, goqu.C("candidate_campaign_we_vote_id").In(ids))
	}
	if len(either) == 0 {
		return goqu.L("1 = 0")
	}
	return goqu.Or(either...)
}

func (s *ElectionScope) match(p *domain.Position) bool {
	for _, id := range s.ElectionIDs {
		if p.GoogleCivicElectionID == id {
			return true
		}
	}
	return containsString(s.CandidateWeVoteIDs, p.CandidateCampaignWeVoteID)
}

func matchesAnyField(fields []searchField, p *domain.Position, word string) bool {
	lowerWord := strings.ToLower(word)
	for _, sf := range fields {
		v := sf.value(p)
		if sf.contains {
			if strings.Contains(strings.ToLower(v), lowerWord) {
				return true
			}
		} else if foldEqual(v, word) {
			return true
		}
	}
	return false
}

// foldEqual compares the way LOWER(a) = LOWER(b) does in SQL.
func foldEqual(a, b string) bool {
	return strings.ToLower(a) == strings.ToLower(b)
}

func iexact(column, value string) exp.Expression {
	return goqu.Func("LOWER", goqu.C(column)).Eq(strings.ToLower(value))
}

func icontains(column, value string) exp.Expression {
	return goqu.L(`LOWER(?) LIKE ? ESCAPE '\'`, goqu.C(column), "%"+escapeLike(strings.ToLower(value))+"%")
}

func inStrings(column string, values []string) exp.Expression {
	values = nonEmpty(values)
	if len(values) == 0 {
		return goqu.L("1 = 0")
	}
	return goqu.C(column).In(values)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// nonEmpty drops empty strings, which never name a row.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
