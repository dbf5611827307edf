package main

import (
	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/examples/bank"
)

// This CLI is monomorphized over the banking domain: Go generics are
// resolved at compile time, so a command-line tool driving the generic
// replay engine must pick one concrete (State, Transaction, RuleSet) triple
// to instantiate against. These aliases keep that choice in one place.
type (
	ledgerState = bank.Ledger
	transferTx  = bank.Transfer
	rulesType   = bank.TransferRules
	resultType  = dtre.ReplayResult[bank.Ledger]
)
