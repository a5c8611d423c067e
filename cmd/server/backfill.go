package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcnelson/position-admin/internal/backfill"
	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
)

var (
	flagElectionID int64
	flagStateCode  string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run a position backfill routine once",
	Long: `Run one of the backfill routines the admin console exposes, without a browser.

Each run is capped by BACKFILL_BATCH_SIZE; run it again until nothing is updated.`,
}

func init() {
	backfillCmd.PersistentFlags().Int64Var(&flagElectionID, "election", 0, "google_civic_election_id")
	backfillCmd.PersistentFlags().StringVar(&flagStateCode, "state", "", "state code")

	backfillCmd.AddCommand(
		backfillRunner("sorting-dates", "Regenerate election dates used to sort positions", runSortingDates),
		backfillRunner("candidates", "Push candidate details into positions", runCandidateDetails),
		backfillRunner("speaker-types", "Classify position speakers", runSpeakerTypes),
		backfillRunner("relink", "Fill missing candidate and measure ids", runRelink),
		backfillRunner("politicians", "Link candidate positions to politicians", runPoliticianLinks),
	)
}

func backfillRunner(use, short string, run func(cmd *cobra.Command, svc *backfill.Service) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()

			svc, err := backfill.NewService(env.store, env.logger, backfill.Options{
				BatchSize:           env.cfg.Backfill.BatchSize,
				PoliticianBatchSize: env.cfg.Backfill.PoliticianBatchSize,
			})
			if err != nil {
				return err
			}
			return run(cmd, svc)
		},
	}
}

func requireElection() error {
	if flagElectionID == 0 {
		return errors.New("--election is required")
	}
	return nil
}

func runSortingDates(cmd *cobra.Command, svc *backfill.Service) error {
	if err := requireElection(); err != nil {
		return err
	}
	res, err := svc.SortingDates(cmd.Context(), flagElectionID)
	if err != nil {
		return err
	}
	fmt.Println(res.String())
	return nil
}

func runCandidateDetails(cmd *cobra.Command, svc *backfill.Service) error {
	if err := requireElection(); err != nil {
		return err
	}
	res, err := svc.CandidateDetails(cmd.Context(), flagElectionID, flagStateCode)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Status)
	}
	fmt.Printf("Positions refreshed: %d, candidates updated: %d, failed: %d\n",
		res.PositionsUpdated, res.CandidatesUpdated, res.Failed)
	return nil
}

func runSpeakerTypes(cmd *cobra.Command, svc *backfill.Service) error {
	if err := requireElection(); err != nil {
		return err
	}
	scope := &query.ElectionScope{ElectionIDs: []int64{flagElectionID}}
	for _, vis := range []domain.Visibility{domain.Public, domain.FriendsOnly} {
		res, err := svc.SpeakerTypesInScope(cmd.Context(), vis, scope)
		if err != nil {
			return err
		}
		fmt.Printf("%s: examined %d, updated %d, failed %d\n", vis, res.Examined, res.Updated, res.Failed)
	}
	return nil
}

func runRelink(cmd *cobra.Command, svc *backfill.Service) error {
	res, err := svc.Relink(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Candidate ids linked: %d, measure ids linked: %d\n", res.Candidates.Updated, res.Measures.Updated)
	return nil
}

func runPoliticianLinks(cmd *cobra.Command, svc *backfill.Service) error {
	res, err := svc.PoliticianLinks(cmd.Context(), flagStateCode)
	if err != nil {
		return err
	}
	fmt.Printf("%d total_to_convert. %d remaining. Linked %d positions across %d candidates.\n",
		res.Total, res.Remaining, res.Updated, res.Candidates)
	return nil
}
