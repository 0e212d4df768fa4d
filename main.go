package main

import (
	"fmt"
	"log"
	"os"

	"facerank/internal/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// Version holds the build-time version string.
var Version = "unknown" // nolint:gochecknoglobals

// nolint:gochecknoglobals
var (
	rootCmd = &cobra.Command{
		Use:   "facerank",
		Short: "Pairwise photo ranking engine",
		Long: `facerank shows two photos at a time, records which one voters prefer and
serves a leaderboard ordered by ELO rating.`,
		SilenceUsage: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API until SIGINT or SIGTERM",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or revert the database schema migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMigrate,
	}
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Replay the vote ledger and report photos whose rating drifted",
		RunE:  runVerify,
	}
	fixturesCmd = &cobra.Command{
		Use:   "dev:fixtures",
		Short: "Create photos and votes for quick testing during development",
		RunE:  runFixtures,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, --write saves it to the user config dir",
		RunE:  runConfig,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Display the current version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "facerank %s\n", Version)
		},
	}

	migrationsPath              string
	fixturePhotos, fixtureVotes int
	writeConfig                 bool
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.NewFromUserConfigDir()
	if err != nil {
		return config.Config{}, fmt.Errorf("unable to load configuration: %w", err)
	}

	return *cfg, nil
}
