package cmd

import (
	"context"
	"fmt"

	"github.com/example/laundry-storefront/internal/session"
	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin console operators",
	}
	cmd.AddCommand(newAdminAddCmd())
	return cmd
}

func newAdminAddCmd() *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add an admin operator (username/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			d, err := openDB(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer d.Close()

			store := session.NewAdminStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			if err := store.CreateAdmin(ctx, username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q\n", username)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password (at least 8 characters)")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
