package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classbridge/ptohub/platform/go/persistence"
	"github.com/classbridge/ptohub/platform/go/ratelimit"
)

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (schema, first organization, first admin)",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL string
		orgName     string
		orgSlug     string
		orgTier     string
		adminUserID string
		adminEmail  string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Apply the schema and seed the first organization plus its admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.Bootstrap(ctx, pool); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}

			orgStore, err := persistence.NewOrgStore(pool)
			if err != nil {
				return fmt.Errorf("init org store: %w", err)
			}

			// Check-or-create so reruns are safe.
			org, err := orgStore.GetOrganizationBySlug(ctx, orgSlug)
			if err != nil {
				if !errors.Is(err, persistence.ErrOrganizationNotFound) {
					return fmt.Errorf("get organization: %w", err)
				}
				org, err = orgStore.CreateOrganization(ctx, persistence.CreateOrganizationParams{
					Name: orgName,
					Slug: orgSlug,
					Tier: string(ratelimit.ParseTier(orgTier)),
				})
				if err != nil {
					return fmt.Errorf("create organization: %w", err)
				}
			}

			profiles, err := persistence.NewProfileStore(pool)
			if err != nil {
				return fmt.Errorf("init profile store: %w", err)
			}

			admin, err := profiles.CreateMember(ctx, persistence.CreateMemberParams{
				UserID: adminUserID,
				OrgID:  org.OrgID,
				Email:  adminEmail,
				Role:   "admin",
			})
			if err != nil {
				if errors.Is(err, persistence.ErrProfileConflict) {
					fmt.Fprintf(cmd.OutOrStdout(), "Admin profile already exists, leaving it untouched.\n")
					admin, err = profiles.GetMember(ctx, org.OrgID, adminUserID)
					if err != nil {
						return fmt.Errorf("get admin profile: %w", err)
					}
				} else {
					return fmt.Errorf("create admin profile: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap complete. Organization: %s (%s, tier %s) | Admin: %s (%s)\n",
				org.Slug, org.OrgID, org.Tier, admin.UserID, admin.Email)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&orgName, "org-name", "", "Display name for the first organization")
	c.Flags().StringVar(&orgSlug, "org-slug", "", "Slug for the first organization")
	c.Flags().StringVar(&orgTier, "org-tier", "free", "Subscription tier (free, standard, premium, enterprise)")
	c.Flags().StringVar(&adminUserID, "admin-user-id", "", "Identity-provider user id for the initial admin")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Initial admin email")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("org-name")
	_ = c.MarkFlagRequired("org-slug")
	_ = c.MarkFlagRequired("admin-user-id")
	_ = c.MarkFlagRequired("admin-email")

	return c
}
