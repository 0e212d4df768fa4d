package main

import (
	"encoding/json"
	"fmt"

	"facerank/internal/back"

	"github.com/spf13/cobra"
)

func runFixtures(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := back.New(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	return b.LoadFixtures(cmd.Context(), fixturePhotos, fixtureVotes)
}

// runVerify exits non-zero when the stored ratings are not exactly what the
// vote ledger replays into.
func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := back.New(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	drifts, err := b.VerifyRatings(cmd.Context())
	if err != nil {
		return err
	}

	if len(drifts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "ok: every rating matches the vote ledger")
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(drifts); err != nil {
		return err
	}

	return fmt.Errorf("%d photos drifted from the vote ledger", len(drifts))
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if writeConfig {
		if err := cfg.Write(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "    ")

	return enc.Encode(cfg)
}
