package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/pinchat/internal/app"
	"github.com/vovakirdan/pinchat/internal/auth"
)

func newAdminCmd(opts *rootOptions) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var username, password string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create an admin or replace its password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := auth.NewService(st, app.JWTConfig(cfg)).SetAdmin(ctx, username, password); err != nil {
				return err
			}
			logger.Info().Str("username", username).Msg("admin saved")
			return nil
		},
	}
	set.Flags().StringVar(&username, "username", "", "admin username")
	set.Flags().StringVar(&password, "password", "", "admin password")
	_ = set.MarkFlagRequired("username")
	_ = set.MarkFlagRequired("password")

	admin.AddCommand(set)
	return admin
}
