package main

import (
	"github.com/spf13/cobra"

	"github.com/dtre-go/dtre/internal/cliutil"
	"github.com/dtre-go/dtre/replay"
)

func newMigrateCommand(root *RootOptions) *cobra.Command {
	var (
		fixturePath   string
		baselineRules string
		candidateRules string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Analyze the impact of migrating a transfer sequence from one fee-policy version to another",
		Long: `Replay a fixture under two fee-policy versions from the same initial
ledger and report every transaction index whose resulting state hash
diverges between them.

Exit codes:
  0 - the candidate rule set is a safe migration (no divergence)
  1 - the candidate rule set is not a safe migration
  2 - command error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(root, cmd, fixturePath, baselineRules, candidateRules)
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a transfer-sequence YAML fixture (required)")
	cmd.Flags().StringVar(&baselineRules, "baseline", "v1", "baseline fee-policy version")
	cmd.Flags().StringVar(&candidateRules, "candidate", "v2", "candidate fee-policy version")
	_ = cmd.MarkFlagRequired("fixture")

	return cmd
}

func runMigrate(root *RootOptions, cmd *cobra.Command, fixturePath, baselineRules, candidateRules string) error {
	ledger, transfers, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}
	baseline, err := ruleSetByVersion(baselineRules)
	if err != nil {
		return err
	}
	candidate, err := ruleSetByVersion(candidateRules)
	if err != nil {
		return err
	}

	engine, err := replay.NewBuilder[ledgerState, transferTx, rulesType]().
		WithInitialState(ledger).
		Build()
	if err != nil {
		return cliutil.WrapExitError(cliutil.ExitCommandError, "failed to build replay engine", err)
	}

	impact, err := engine.AnalyzeMigrationImpact(transfers, baseline, candidate)
	if err != nil {
		return cliutil.WrapExitError(cliutil.ExitCommandError, "migration impact analysis failed", err)
	}

	f := &cliutil.Formatter{JSON: root.JSON, Writer: cmd.OutOrStdout()}
	if !impact.IsSafeMigration() {
		_ = f.Failure("E_UNSAFE_MIGRATION", "candidate rule set diverges from baseline", impact.Differences)
		return cliutil.NewExitError(cliutil.ExitFailure, "unsafe migration")
	}
	return f.Success(map[string]any{
		"safe_migration":        true,
		"identical_final_state": impact.IdenticalFinalState,
		"identical_final_hash":  impact.IdenticalFinalHash,
	})
}
