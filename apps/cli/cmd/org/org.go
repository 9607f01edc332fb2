package org

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/classbridge/ptohub/platform/go/persistence"
	"github.com/classbridge/ptohub/platform/go/ratelimit"
)

// Command groups organization management helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(setTierCommand())
	return cmd
}

func withPool(databaseURL string, fn func(ctx context.Context, store *persistence.OrgStore) error) error {
	ctx := context.Background()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	defer persistence.ClosePool(pool)

	store, err := persistence.NewOrgStore(pool)
	if err != nil {
		return fmt.Errorf("init org store: %w", err)
	}
	return fn(ctx, store)
}

func createCommand() *cobra.Command {
	var (
		databaseURL string
		name        string
		slug        string
		tier        string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(databaseURL, func(ctx context.Context, store *persistence.OrgStore) error {
				org, err := store.CreateOrganization(ctx, persistence.CreateOrganizationParams{
					Name: name,
					Slug: slug,
					Tier: string(ratelimit.ParseTier(tier)),
				})
				if err != nil {
					return fmt.Errorf("create organization: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) tier=%s\n", org.Slug, org.OrgID, org.Tier)
				return nil
			})
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&name, "name", "", "Display name")
	c.Flags().StringVar(&slug, "slug", "", "Unique slug")
	c.Flags().StringVar(&tier, "tier", "free", "Subscription tier (free, standard, premium, enterprise)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("slug")

	return c
}

func listCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(databaseURL, func(ctx context.Context, store *persistence.OrgStore) error {
				orgs, err := store.ListOrganizations(ctx)
				if err != nil {
					return fmt.Errorf("list organizations: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SLUG\tNAME\tTIER\tORG ID\tCREATED")
				for _, org := range orgs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						org.Slug, org.Name, org.Tier, org.OrgID, org.CreatedAt.Format("2006-01-02"))
				}
				return w.Flush()
			})
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func setTierCommand() *cobra.Command {
	var (
		databaseURL string
		slug        string
		tier        string
	)

	c := &cobra.Command{
		Use:   "set-tier",
		Short: "Change an organization's subscription tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(databaseURL, func(ctx context.Context, store *persistence.OrgStore) error {
				org, err := store.GetOrganizationBySlug(ctx, slug)
				if err != nil {
					return fmt.Errorf("get organization: %w", err)
				}
				updated, err := store.UpdateOrganizationTier(ctx, org.OrgID, string(ratelimit.ParseTier(tier)))
				if err != nil {
					return fmt.Errorf("update tier: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Organization %s now on tier %s\n", updated.Slug, updated.Tier)
				return nil
			})
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&slug, "slug", "", "Organization slug")
	c.Flags().StringVar(&tier, "tier", "", "New tier (free, standard, premium, enterprise)")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("slug")
	_ = c.MarkFlagRequired("tier")

	return c
}
