package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dtre-go/dtre/examples/bank"
	"github.com/dtre-go/dtre/internal/cliutil"
)

// fixtureDoc is the on-disk shape of a transfer-sequence fixture file.
type fixtureDoc struct {
	Balances  map[string]int64 `yaml:"balances"`
	Transfers []struct {
		ID     string `yaml:"id"`
		From   string `yaml:"from"`
		To     string `yaml:"to"`
		Amount int64  `yaml:"amount"`
		At     string `yaml:"at"`
	} `yaml:"transfers"`
}

// loadFixture reads a YAML fixture describing starting balances and a
// transfer sequence. Timestamps default to successive seconds from epoch
// zero when "at" is omitted, keeping fixtures terse while staying
// reproducible (never time.Now()).
func loadFixture(path string) (bank.Ledger, []bank.Transfer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return bank.Ledger{}, nil, cliutil.WrapExitError(cliutil.ExitCommandError, "failed to read fixture", err)
	}
	var doc fixtureDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return bank.Ledger{}, nil, cliutil.WrapExitError(cliutil.ExitCommandError, "failed to parse fixture", err)
	}

	base := time.Unix(0, 0).UTC()
	transfers := make([]bank.Transfer, 0, len(doc.Transfers))
	for i, t := range doc.Transfers {
		at := base.Add(time.Duration(i) * time.Second)
		if t.At != "" {
			parsed, err := time.Parse(time.RFC3339, t.At)
			if err != nil {
				return bank.Ledger{}, nil, cliutil.WrapExitError(cliutil.ExitCommandError, fmt.Sprintf("transfer %d: invalid timestamp", i), err)
			}
			at = parsed
		}
		id := t.ID
		if id == "" {
			id = bank.NewTransferID()
		}
		transfers = append(transfers, bank.Transfer{
			TxID:   id,
			From:   t.From,
			To:     t.To,
			Amount: t.Amount,
			At:     at,
		})
	}

	return bank.NewLedger(doc.Balances), transfers, nil
}

// ruleSetByVersion maps the --rules flag's accepted spellings to a concrete
// TransferRules instance.
func ruleSetByVersion(name string) (bank.TransferRules, error) {
	switch name {
	case "", "v1", "1.0.0":
		return bank.V1FlatFee(), nil
	case "v1.1", "1.1.0":
		return bank.V1_1ProportionalFee(), nil
	case "v2", "2.0.0":
		return bank.V2TieredFee(), nil
	default:
		return bank.TransferRules{}, cliutil.NewExitError(cliutil.ExitCommandError, fmt.Sprintf("unknown rule set %q (want v1, v1.1, or v2)", name))
	}
}
