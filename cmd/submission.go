package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/laundry-storefront/internal/submissions"
	"github.com/spf13/cobra"
)

func newSubmissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submission",
		Short: "Inspect the reservation submission ledger",
	}
	cmd.AddCommand(newSubmissionListCmd())
	return cmd
}

func newSubmissionListCmd() *cobra.Command {
	var (
		userID string
		limit  int
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List submissions for a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := openDB(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer d.Close()

			rows, err := submissions.NewRepo(d).ListByUser(ctx, userID, limit)
			if err != nil {
				return err
			}
			for _, s := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "id=%s status=%s store=%s mode=%s options=%s price=%d minutes=%d created=%s\n",
					s.ID, s.Status, s.StoreID, s.Mode, strings.Join(s.OptionIDs, ","), s.TotalPrice, s.TotalMinutes, s.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user-id", "", "backend user id")
	c.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	_ = c.MarkFlagRequired("user-id")
	return c
}
