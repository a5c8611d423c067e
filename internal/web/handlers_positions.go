package web

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/backfill"
	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
	"github.com/bcnelson/position-admin/internal/validation"
)

const positionsPerPage = 20

// StateOption is one entry of the state dropdown.
type StateOption struct {
	Code string
	Name string
}

// PositionListData holds data for the position list page.
type PositionListData struct {
	Positions            []*domain.Position
	Search               string
	Elections            []*domain.Election
	ElectionYears        []int
	ElectionID           int64
	StateCode            string
	States               []StateOption
	OrganizationWeVoteID string
	ShowAllElections     bool
	ShowFriendsOnly      bool
	ShowStatistics       bool
	ShowThisYear         int
	ShowAdminOptions     bool
	CanEdit              bool
	Page                 int
	PrevURL              string
	NextURL              string
}

type listParams struct {
	electionID           int64
	stateCode            string
	search               string
	organizationWeVoteID string
	showAllElections     bool
	showFriendsOnly      bool
	showStatistics       bool
	showThisYear         int
	politicianAnalyzed   bool
	page                 int
}

func parseListParams(r *http.Request) listParams {
	q := r.URL.Query()
	p := listParams{
		electionID:           parseInt64(q.Get("google_civic_election_id")),
		stateCode:            strings.TrimSpace(q.Get("state_code")),
		search:               strings.TrimSpace(q.Get("position_search")),
		organizationWeVoteID: strings.TrimSpace(q.Get("organization_we_vote_id")),
		showAllElections:     positive(q.Get("show_all_elections")),
		showFriendsOnly:      positive(q.Get("show_friends_only")),
		showStatistics:       positive(q.Get("show_statistics")),
		showThisYear:         parseInt(q.Get("show_this_year_of_elections"), 0),
		politicianAnalyzed:   positive(q.Get("politician_we_vote_id_analyzed_on")),
		page:                 parseInt(q.Get("page"), 1),
	}
	if p.page < 1 {
		p.page = 1
	}
	return p
}

// pageURL links to another page of the same listing.
func (p listParams) pageURL(page int) string {
	extra := []string{
		"position_search", p.search,
		"organization_we_vote_id", p.organizationWeVoteID,
	}
	if p.showAllElections {
		extra = append(extra, "show_all_elections", "1")
	}
	if p.showFriendsOnly {
		extra = append(extra, "show_friends_only", "1")
	}
	if p.showThisYear != 0 {
		extra = append(extra, "show_this_year_of_elections", fmt.Sprint(p.showThisYear))
	}
	if page > 1 {
		extra = append(extra, "page", fmt.Sprint(page))
	}
	return listURL(p.electionID, p.stateCode, extra...)
}

// handlePositionList renders the position list page. With show_statistics it
// also backfills speaker types and office info for the selected election and
// reports counts.
func (s *Server) handlePositionList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := parseListParams(r)
	voter := auth.VoterFromContext(ctx)
	isAdmin := auth.HasAuthority(voter, domain.RoleAdmin)

	var flashes []FlashMessage

	if p.politicianAnalyzed {
		res, err := s.backfill.PoliticianLinks(ctx, p.stateCode)
		if err != nil {
			s.logger.Error("linking politicians", zap.Error(err))
			flashes = append(flashes, failure(fmt.Sprintf("ERROR with politician_we_vote_id_analyzed_on: %v", err)))
		} else {
			flashes = append(flashes, info(fmt.Sprintf(
				"politician_we_vote_id_analyzed_on: %s total_to_convert. %s remaining.",
				comma(res.Total), comma(res.Remaining))))
		}
	}

	allElections, err := s.store.ListElections(ctx)
	if err != nil {
		s.logger.Error("listing elections", zap.Error(err))
		s.renderError(w, r, "Failed to load elections", http.StatusInternalServerError)
		return
	}

	dropdownIDs, err := s.dropdownElectionIDs(r, p, allElections)
	if err != nil {
		s.logger.Error("listing upcoming elections", zap.Error(err))
		s.renderError(w, r, "Failed to load elections", http.StatusInternalServerError)
		return
	}

	displayIDs := dropdownIDs
	if p.electionID != 0 {
		displayIDs = []int64{p.electionID}
	}

	var candidateIDs []string
	if len(displayIDs) > 0 {
		candidates, err := s.store.ListCandidates(ctx, storage.CandidateFilter{ElectionIDs: displayIDs, StateCode: p.stateCode})
		if err != nil {
			s.logger.Error("listing candidates", zap.Error(err))
		}
		for _, c := range candidates {
			if c.WeVoteID != "" {
				candidateIDs = append(candidateIDs, c.WeVoteID)
			}
		}
	}
	scope := &query.ElectionScope{ElectionIDs: displayIDs, CandidateWeVoteIDs: candidateIDs}

	if p.showStatistics && p.electionID != 0 {
		flashes = append(flashes, s.cleanPositions(r, scope)...)
	}

	f := &query.PositionFilter{
		StateCode:            p.stateCode,
		Search:               p.search,
		OrganizationWeVoteID: p.organizationWeVoteID,
	}
	if !(p.showAllElections && p.search != "") {
		f.Elections = scope
	}

	vis := domain.Public
	if p.showFriendsOnly {
		vis = domain.FriendsOnly
	}

	var positions []*domain.Position
	hasNext := false
	if vis == domain.Public || isAdmin {
		positions, err = s.store.ListPositions(ctx, vis, f, storage.ListOptions{
			Order:  storage.OrderNewest,
			Limit:  positionsPerPage + 1,
			Offset: (p.page - 1) * positionsPerPage,
		})
		if err != nil {
			s.logger.Error("listing positions", zap.Error(err))
			s.renderError(w, r, "Failed to load positions", http.StatusInternalServerError)
			return
		}
		if len(positions) > positionsPerPage {
			positions = positions[:positionsPerPage]
			hasNext = true
		}

		if p.showStatistics {
			msg, err := s.countMessage(r, vis, f)
			if err != nil {
				s.logger.Error("counting positions", zap.Error(err))
			} else {
				flashes = append(flashes, info(msg))
			}
		}
	}

	states := s.stateOptions(r, p.showStatistics, displayIDs)

	elections, err := s.store.ListElectionsByID(ctx, dropdownIDs)
	if err != nil {
		s.logger.Error("listing dropdown elections", zap.Error(err))
	}

	data := PositionListData{
		Positions:            positions,
		Search:               p.search,
		Elections:            elections,
		ElectionYears:        electionYears(allElections),
		ElectionID:           p.electionID,
		StateCode:            p.stateCode,
		States:               states,
		OrganizationWeVoteID: p.organizationWeVoteID,
		ShowAllElections:     p.showAllElections,
		ShowFriendsOnly:      p.showFriendsOnly,
		ShowStatistics:       p.showStatistics,
		ShowThisYear:         p.showThisYear,
		ShowAdminOptions:     isAdmin,
		CanEdit:              auth.HasAuthority(voter, domain.RoleVerifiedVolunteer),
		Page:                 p.page,
	}
	if p.page > 1 {
		data.PrevURL = p.pageURL(p.page - 1)
	}
	if hasNext {
		data.NextURL = p.pageURL(p.page + 1)
	}

	s.render(w, r, "base", "position_list", http.StatusOK, PageData{
		Title:   "Positions",
		Active:  "positions",
		Flashes: flashes,
		Content: data,
	})
}

// dropdownElectionIDs picks the elections offered in the dropdown: one year,
// every election, or the upcoming ones plus the selected election.
func (s *Server) dropdownElectionIDs(r *http.Request, p listParams, all []*domain.Election) ([]int64, error) {
	var ids []int64
	switch {
	case p.showThisYear != 0:
		for _, e := range all {
			if e.Year() == p.showThisYear {
				ids = append(ids, e.GoogleCivicElectionID)
			}
		}
	case p.showAllElections:
		for _, e := range all {
			ids = append(ids, e.GoogleCivicElectionID)
		}
	default:
		upcoming, err := s.store.ListUpcomingElections(r.Context(), time.Now().Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		selectedFound := false
		for _, e := range upcoming {
			ids = append(ids, e.GoogleCivicElectionID)
			selectedFound = selectedFound || e.GoogleCivicElectionID == p.electionID
		}
		if p.electionID != 0 && !selectedFound {
			if _, err := s.store.GetElection(r.Context(), p.electionID); err == nil {
				ids = append(ids, p.electionID)
			}
		}
	}
	return ids, nil
}

// cleanPositions backfills speaker types and office info for the positions in
// scope and reports what changed.
func (s *Server) cleanPositions(r *http.Request, scope *query.ElectionScope) []FlashMessage {
	ctx := r.Context()
	var speaker, office [2]backfill.Result
	var flashes []FlashMessage

	for i, vis := range []domain.Visibility{domain.Public, domain.FriendsOnly} {
		res, err := s.backfill.SpeakerTypesInScope(ctx, vis, scope)
		if err != nil {
			s.logger.Error("backfilling speaker types", zap.Stringer("visibility", vis), zap.Error(err))
			flashes = append(flashes, failure(err.Error()))
		}
		speaker[i] = res

		res, err = s.backfill.ContestOfficeInfoInScope(ctx, vis, scope)
		if err != nil {
			s.logger.Error("backfilling office info", zap.Stringer("visibility", vis), zap.Error(err))
			flashes = append(flashes, failure(err.Error()))
		}
		office[i] = res
	}

	if speaker[0].Updated > 0 || speaker[1].Updated > 0 {
		flashes = append(flashes, info(fmt.Sprintf(
			"%s public positions updated with speaker_type. %s friends-only positions updated with speaker_type. ",
			comma(speaker[0].Updated), comma(speaker[1].Updated))))
	}
	if office[0].Updated > 0 || office[1].Updated > 0 {
		flashes = append(flashes, info(fmt.Sprintf(
			"%s public positions updated with office info. %s friends-only positions updated with office info. ",
			comma(office[0].Updated), comma(office[1].Updated))))
	}
	return flashes
}

func (s *Server) countMessage(r *http.Request, vis domain.Visibility, f *query.PositionFilter) (string, error) {
	total, err := s.store.CountPositions(r.Context(), vis, f)
	if err != nil {
		return "", err
	}
	withStatement := *f
	withStatement.WithStatement = true
	comments, err := s.store.CountPositions(r.Context(), vis, &withStatement)
	if err != nil {
		return "", err
	}

	kind := "public"
	if vis == domain.FriendsOnly {
		kind = "friends-only"
	}
	return fmt.Sprintf("%s %s positions found (%s with commentary). ", comma(total), kind, comma(comments)), nil
}

// stateOptions lists every state, annotated with "public/friends-only"
// position counts when statistics are on.
func (s *Server) stateOptions(r *http.Request, statistics bool, electionIDs []int64) []StateOption {
	var counts map[string]storage.StateCount
	if statistics && len(electionIDs) > 0 {
		var err error
		counts, err = s.store.CountPositionsByState(r.Context(), electionIDs)
		if err != nil {
			s.logger.Error("counting positions by state", zap.Error(err))
		}
	}

	codes := domain.SortedStateCodes()
	options := make([]StateOption, 0, len(codes))
	for _, code := range codes {
		name := domain.StateCodeMap[code]
		if c, ok := counts[code]; ok && (c.Public > 0 || c.FriendsOnly > 0) {
			name += fmt.Sprintf(" - %d/%d", c.Public, c.FriendsOnly)
		}
		options = append(options, StateOption{Code: code, Name: name})
	}
	return options
}

func electionYears(elections []*domain.Election) []int {
	seen := make(map[int]bool)
	var years []int
	for _, e := range elections {
		if y := e.Year(); y != 0 && !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// PositionFormData holds data for the position create/edit form.
type PositionFormData struct {
	Position *domain.Position
	IsEdit   bool
	Stances  []string
	States   []StateOption
}

// handlePositionNew renders an empty position form.
func (s *Server) handlePositionNew(w http.ResponseWriter, r *http.Request) {
	s.renderPositionForm(w, r, nil)
}

// handlePositionEdit renders the edit form for one public position. An unknown
// we_vote_id falls back to an empty form.
func (s *Server) handlePositionEdit(w http.ResponseWriter, r *http.Request) {
	position, err := s.store.GetPosition(r.Context(), domain.Public, chi.URLParam(r, "we_vote_id"))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("loading position", zap.Error(err))
	}
	s.renderPositionForm(w, r, position)
}

func (s *Server) renderPositionForm(w http.ResponseWriter, r *http.Request, position *domain.Position) {
	data := PositionFormData{
		Position: position,
		IsEdit:   position != nil,
		Stances:  domain.Stances,
		States:   s.stateOptions(r, false, nil),
	}
	if position == nil {
		data.Position = &domain.Position{Stance: domain.StanceNoStance}
	}

	title := "New Position"
	if data.IsEdit {
		title = "Edit Position"
	}
	s.render(w, r, "base", "position_edit", http.StatusOK, PageData{
		Title:   title,
		Active:  "positions",
		Content: data,
	})
}

// handlePositionEditProcess updates the public position named by
// position_we_vote_id, or saves a new one when there is none.
func (s *Server) handlePositionEditProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirect(w, r, "/positions", failure("Could not save position."))
		return
	}
	ctx := r.Context()

	existing, err := s.store.GetPosition(ctx, domain.Public, strings.TrimSpace(r.FormValue("position_we_vote_id")))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		existing = nil
	default:
		s.logger.Error("loading position", zap.Error(err))
		s.redirect(w, r, "/positions", failure("Could not save position."))
		return
	}

	position := existing
	if position == nil {
		position = &domain.Position{WeVoteID: newPositionWeVoteID(), SpeakerType: domain.SpeakerTypeUnknown}
	}
	if err := applyPositionForm(r, position); err != nil {
		s.redirect(w, r, "/positions", failure("Could not save position. "+err.Error()))
		return
	}

	if existing != nil {
		position.DateLastChanged = time.Now().UTC()
		err = s.store.UpdatePosition(ctx, domain.Public, position)
	} else {
		err = s.store.CreatePosition(ctx, domain.Public, position)
	}
	if err != nil {
		s.logger.Error("saving position", zap.String("we_vote_id", position.WeVoteID), zap.Error(err))
		s.redirect(w, r, "/positions", failure("Could not save position."))
		return
	}

	msg := "New position saved."
	if existing != nil {
		msg = "Position updated."
	}
	s.redirect(w, r, listURL(position.GoogleCivicElectionID, position.StateCode), success(msg))
}

// applyPositionForm copies the editable form fields onto p and validates them.
func applyPositionForm(r *http.Request, p *domain.Position) error {
	stance := strings.ToUpper(strings.TrimSpace(r.FormValue("stance")))
	if stance == "" {
		stance = domain.StanceNoStance
	}

	p.Stance = stance
	p.BallotItemDisplayName = strings.TrimSpace(r.FormValue("ballot_item_display_name"))
	p.SpeakerDisplayName = strings.TrimSpace(r.FormValue("speaker_display_name"))
	p.OrganizationWeVoteID = strings.TrimSpace(r.FormValue("organization_we_vote_id"))
	p.VoterWeVoteID = strings.TrimSpace(r.FormValue("voter_we_vote_id"))
	p.CandidateCampaignWeVoteID = strings.TrimSpace(r.FormValue("candidate_campaign_we_vote_id"))
	p.ContestMeasureWeVoteID = strings.TrimSpace(r.FormValue("contest_measure_we_vote_id"))
	p.GoogleCivicElectionID = parseInt64(r.FormValue("google_civic_election_id"))
	p.StateCode = strings.ToUpper(strings.TrimSpace(r.FormValue("state_code")))
	p.StatementText = strings.TrimSpace(r.FormValue("statement_text"))
	p.MoreInfoURL = strings.TrimSpace(r.FormValue("more_info_url"))

	if errs := validation.ValidatePosition(p); errs.HasErrors() {
		return errs
	}
	return nil
}

// handlePositionSummary renders one public position.
func (s *Server) handlePositionSummary(w http.ResponseWriter, r *http.Request) {
	position, err := s.store.GetPosition(r.Context(), domain.Public, chi.URLParam(r, "we_vote_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.renderError(w, r, "Position not found.", http.StatusNotFound)
			return
		}
		s.logger.Error("loading position", zap.Error(err))
		s.renderError(w, r, "Failed to load position", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "base", "position_summary", http.StatusOK, PageData{
		Title:   "Position " + position.WeVoteID,
		Active:  "positions",
		Content: position,
	})
}

// handlePositionDelete deletes one public position.
func (s *Server) handlePositionDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirect(w, r, "/positions", failure("Could not find position."))
		return
	}
	ctx := r.Context()
	weVoteID := strings.TrimSpace(r.FormValue("position_we_vote_id"))
	electionID := parseInt64(r.FormValue("google_civic_election_id"))

	position, err := s.store.GetPosition(ctx, domain.Public, weVoteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("loading position", zap.Error(err))
		}
		s.redirect(w, r, listURL(electionID, ""), failure("Could not find position."))
		return
	}

	if err := s.store.DeletePosition(ctx, domain.Public, weVoteID); err != nil {
		s.logger.Error("deleting position", zap.String("we_vote_id", weVoteID), zap.Error(err))
		s.redirect(w, r, listURL(electionID, ""), failure("Could not delete position."))
		return
	}

	s.logger.Info("position deleted", zap.String("we_vote_id", weVoteID))
	s.redirect(w, r,
		listURL(electionID, "", "organization_we_vote_id", position.OrganizationWeVoteID),
		info("Position deleted."))
}
