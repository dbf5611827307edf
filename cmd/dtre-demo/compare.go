package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dtre-go/dtre/compare"
	"github.com/dtre-go/dtre/dtreerr"
	"github.com/dtre-go/dtre/internal/cliutil"
	"github.com/dtre-go/dtre/replay"
)

func newCompareCommand(root *RootOptions) *cobra.Command {
	var (
		fixturePath string
		rulesName   string
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Replay a fixture twice (optionally in parallel workers) and report whether the results agree",
		Long: `Replay a fixture twice under the same rule set and compare the results
structurally. With --workers >= 2, uses the parallel-verification path
instead, which fails fast on any worker disagreement.

Exit codes:
  0 - results are identical
  1 - results diverge (or parallel workers disagreed)
  2 - command error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(root, cmd, fixturePath, rulesName, workers)
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a transfer-sequence YAML fixture (required)")
	cmd.Flags().StringVar(&rulesName, "rules", "v1", "fee-policy version: v1, v1.1, or v2")
	cmd.Flags().IntVar(&workers, "workers", 1, "number of parallel workers to cross-verify (1 disables parallel verification)")
	_ = cmd.MarkFlagRequired("fixture")

	return cmd
}

func runCompare(root *RootOptions, cmd *cobra.Command, fixturePath, rulesName string, workers int) error {
	ledger, transfers, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}
	rules, err := ruleSetByVersion(rulesName)
	if err != nil {
		return err
	}

	engine, err := replay.NewBuilder[ledgerState, transferTx, rulesType]().
		WithInitialState(ledger).
		Build()
	if err != nil {
		return cliutil.WrapExitError(cliutil.ExitCommandError, "failed to build replay engine", err)
	}

	f := &cliutil.Formatter{JSON: root.JSON, Writer: cmd.OutOrStdout()}

	if workers >= 2 {
		result, err := engine.ReplayParallel(transfers, rules, workers)
		if err != nil {
			var pe *dtreerr.ProcessingError
			if !errors.As(err, &pe) || pe.Operation != "parallel_replay" {
				return cliutil.WrapExitError(cliutil.ExitCommandError, "parallel replay failed", err)
			}
			_ = f.Failure("E_NONDETERMINISTIC", "parallel workers disagreed", err.Error())
			return cliutil.WrapExitError(cliutil.ExitFailure, "parallel verification failed", err)
		}
		return f.Success(summarizeResult(result))
	}

	baseline, err := engine.Replay(transfers, rules)
	if err != nil {
		return cliutil.WrapExitError(cliutil.ExitCommandError, "baseline replay failed", err)
	}
	second, err := engine.Replay(transfers, rules)
	if err != nil {
		return cliutil.WrapExitError(cliutil.ExitCommandError, "second replay failed", err)
	}

	rc, err := compare.Compare[ledgerState](baseline, second, engine.Serializer())
	if err != nil {
		return cliutil.WrapExitError(cliutil.ExitCommandError, "comparing replay results failed", err)
	}
	if !rc.AreIdentical() {
		_ = f.Failure("E_DIVERGENCE", rc.Summary(), rc.Transitions)
		return cliutil.NewExitError(cliutil.ExitFailure, "replay results diverge")
	}
	return f.Success(map[string]any{
		"identical":   true,
		"final_hash":  baseline.FinalHash.String(),
		"transaction_count": baseline.ExecutionTrace.TransactionsProcessed,
	})
}
