package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/domain"
)

var (
	flagUserEmail    string
	flagUserName     string
	flagUserPassword string
	flagUserRoles    []string
)

var addUserCmd = &cobra.Command{
	Use:   "adduser",
	Short: "Create a staff account",
	Long: `Create a staff account that can sign in to the admin console.

Roles: admin, analytics_admin, partner_organization, political_data_manager,
political_data_viewer, verified_volunteer. Repeat --role to grant several.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(flagUserEmail)
		if email == "" {
			return errors.New("--email is required")
		}
		if len(flagUserPassword) < 8 {
			return errors.New("--password must be at least 8 characters")
		}

		voter := &domain.Voter{
			WeVoteID: "wv00voter" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
			Email:    email,
			FullName: strings.TrimSpace(flagUserName),
		}
		for _, r := range flagUserRoles {
			if !voter.SetRole(domain.Role(strings.TrimSpace(r))) {
				return fmt.Errorf("unknown role %q", r)
			}
		}

		hash, err := auth.HashPassword(flagUserPassword)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		voter.PasswordHash = hash

		env, err := setup()
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.CreateVoter(cmd.Context(), voter); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return fmt.Errorf("an account already uses %s", email)
			}
			return fmt.Errorf("creating account: %w", err)
		}

		fmt.Printf("Created %s (%s) with roles: %v\n", voter.Email, voter.WeVoteID, voter.Roles())
		return nil
	},
}

func init() {
	addUserCmd.Flags().StringVar(&flagUserEmail, "email", "", "sign-in email")
	addUserCmd.Flags().StringVar(&flagUserName, "name", "", "full name")
	addUserCmd.Flags().StringVar(&flagUserPassword, "password", "", "sign-in password")
	addUserCmd.Flags().StringSliceVar(&flagUserRoles, "role", nil, "role to grant (repeatable)")
}
