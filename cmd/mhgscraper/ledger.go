package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mhgscraper/pkg/config"
	"mhgscraper/pkg/ledger"
	"mhgscraper/pkg/ui"
)

var (
	// Ledger command flags
	migrateTo        string
	migrateToBackend string
)

// ledgerCmd represents the ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and edit the completed-chapter ledger",
	Long: `The ledger records every chapter URL whose images were all written.
Chapters in the ledger are skipped by download and chapter.`,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed chapters",
	Args:  cobra.NoArgs,
	RunE:  runLedgerList,
}

var ledgerForgetCmd = &cobra.Command{
	Use:   "forget <chapter-url>...",
	Short: "Remove chapters so the next run downloads them again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLedgerForget,
}

var ledgerMigrateCmd = &cobra.Command{
	Use:   "migrate --to <path>",
	Short: "Copy the ledger into another backend",
	Long: `Copy every completed chapter into another ledger.

The target backend is taken from --to-backend, or guessed from the file
extension (.db, .sqlite and .sqlite3 select sqlite).`,
	Example: `  # Move a JSON ledger into sqlite
  mhgscraper ledger migrate --to ledger.db`,
	Args: cobra.NoArgs,
	RunE: runLedgerMigrate,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerForgetCmd)
	ledgerCmd.AddCommand(ledgerMigrateCmd)

	ledgerCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "db.json", "ledger path")
	ledgerCmd.PersistentFlags().StringVar(&ledgerBackend, "ledger-backend", "json", "ledger backend (json, sqlite)")

	ledgerMigrateCmd.Flags().StringVar(&migrateTo, "to", "", "target ledger path")
	ledgerMigrateCmd.Flags().StringVar(&migrateToBackend, "to-backend", "", "target backend (json, sqlite)")
	_ = ledgerMigrateCmd.MarkFlagRequired("to")
}

func openLedger(cmd *cobra.Command) (ledger.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := ledger.Open(cfg.Ledger, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger %s: %w", cfg.Ledger.Path, err)
	}
	return store, cfg, nil
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	store, cfg, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries := store.Entries()
	for _, key := range entries {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	ui.PrintInfo("Ledger", fmt.Sprintf("%s (%d chapters)", cfg.Ledger.Path, len(entries)))
	return nil
}

func runLedgerForget(cmd *cobra.Command, args []string) error {
	store, _, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, arg := range args {
		key := strings.TrimSpace(arg)
		if !store.IsComplete(key) {
			ui.PrintWarning("Not in ledger", key)
			continue
		}
		if err := store.Forget(key); err != nil {
			return fmt.Errorf("failed to forget %s: %w", key, err)
		}
		ui.PrintSuccess("Forgot " + key)
	}
	return nil
}

func runLedgerMigrate(cmd *cobra.Command, args []string) error {
	src, cfg, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	target := config.LedgerConfig{Path: migrateTo, Backend: migrateToBackend}
	if target.Backend == "" {
		target.Backend = backendFor(migrateTo)
	}
	if filepath.Clean(target.Path) == filepath.Clean(cfg.Ledger.Path) {
		return fmt.Errorf("target ledger %s is the source ledger", target.Path)
	}

	dst, err := ledger.Open(target, nil)
	if err != nil {
		return fmt.Errorf("failed to open target ledger %s: %w", target.Path, err)
	}
	defer dst.Close()

	copied, err := ledger.Migrate(src, dst)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Migrated %d chapters to %s (%s)", copied, target.Path, target.Backend))
	return nil
}

func backendFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "json"
	}
}
