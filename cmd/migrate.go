package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/logger"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(s *store.Store) error { return s.MigrateUp() })
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withStore(cmd, func(s *store.Store) error { return s.MigrateDown(steps) })
		},
	})

	return migrateCmd
}

func withStore(cmd *cobra.Command, fn func(*store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	s, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(s); err != nil {
		return err
	}
	log.Info().Str("command", cmd.CommandPath()).Msg("migrations done")
	return nil
}
