package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/nfcgate/internal/db"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store/sqlite"
)

func newUsersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Print registered users, newest first, as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd.Context(), c, func(ctx context.Context, users *sqlite.UserStore, _ *sqlite.JournalStore) (any, error) {
				return users.ListUsers(ctx)
			})
		},
	}
}

func newLogsCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the most recent journal entries as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd.Context(), c, func(ctx context.Context, _ *sqlite.UserStore, journal *sqlite.JournalStore) (any, error) {
				return journal.RecentEvents(ctx, service.ClampLogLimit(limit))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", service.DefaultLogLimit, "number of entries")
	return cmd
}

func withStores(ctx context.Context, c *cli, fn func(context.Context, *sqlite.UserStore, *sqlite.JournalStore) (any, error)) error {
	conn, err := db.Open(ctx, db.Config{Path: c.cfg.DBPath})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	v, err := fn(ctx, sqlite.NewUserStore(conn, writer), sqlite.NewJournalStore(conn, writer))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
