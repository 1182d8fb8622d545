package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
	"github.com/misterlabs/agentvault/pkg/ledger"
	"github.com/misterlabs/agentvault/pkg/signer"
	"github.com/misterlabs/agentvault/pkg/store"
)

/*
	One-shot commands that operate directly on the registry and the
	chain index, for scripted deploy/withdraw flows and recovery work
	without a running server.
*/

// exit codes for scripted callers
const (
	exitBadRequest = 1
	exitNoFunds    = 2
	exitIdentity   = 3
	exitNetwork    = 4
	exitOther      = 5
)

func exitCodeFor(err error) int {
	switch vault.CodeOf(err) {
	case vault.BadRequest, vault.InvalidAddress, vault.NotFound, vault.BadTransition:
		return exitBadRequest
	case vault.InsufficientFunds, vault.NoFundsAtAddress:
		return exitNoFunds
	case vault.ScriptIdentityMismatch, vault.RegistrationRejected:
		return exitIdentity
	case vault.NetworkError, vault.NotAvailable:
		return exitNetwork
	}
	return exitOther
}

func fail(err error) {
	var info *vault.ErrorInfo
	if e, ok := err.(*vault.ErrorInfo); ok {
		info = e
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if info != nil && info.Action != "" {
		fmt.Fprintf(os.Stderr, "action: %s\n", info.Action)
	}
	os.Exit(exitCodeFor(err))
}

func printJSON(v any) {
	o, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(o))
}

// buildAPI wires a store, chain index and optional local signer from
// config for one-shot use.
func buildAPI(conf vault.Config) (vault.API, func()) {
	db, err := store.NewSQLite(conf.Store.DBFile)
	if err != nil {
		fail(err)
	}
	chain, err := ledger.NewBlockfrostIndex(conf)
	if err != nil {
		fail(vault.NewErr(vault.NotAvailable, "%v", err))
	}
	var sig vault.Signer
	if conf.Signer.KeyFile != "" {
		s, err := signer.LoadKeyFile(conf.Signer.KeyFile)
		if err != nil {
			fail(err)
		}
		sig = s
	}
	return vault.NewAPI(db, chain, sig, nil, conf), db.Close
}

// cancelOnSignal returns a context cancelled by SIGINT/SIGTERM, so a
// withdrawal can be aborted cleanly before submission.
func cancelOnSignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func readScriptHex(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		fail(vault.NewErr(vault.BadRequest, "cannot read script file %s: %v", path, err))
	}
	return strings.TrimSpace(string(raw))
}

func registerCmd(conf *vault.Config) *cobra.Command {
	var purpose, version, hash, address string
	var constr, exMem, exSteps uint64
	cmd := &cobra.Command{
		Use:   "register <script-hex-file>",
		Short: "Verify a script's identity and add it to the registry",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			api, closeStore := buildAPI(*conf)
			defer closeStore()
			entry, err := api.RegisterContract(vault.RegisterRequest{
				Purpose:        purpose,
				ScriptHex:      readScriptHex(args[0]),
				ScriptVersion:  version,
				ScriptHash:     hash,
				Address:        cardano.Address(address),
				WithdrawConstr: constr,
				ExUnitsMem:     exMem,
				ExUnitsSteps:   exSteps,
			})
			if err != nil {
				fail(err)
			}
			printJSON(entry)
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "agent_vault", "Purpose tag for the contract")
	cmd.Flags().StringVar(&version, "version", "PlutusV2", "Script version (PlutusV1/V2/V3)")
	cmd.Flags().StringVar(&hash, "hash", "", "Claimed script hash to verify (optional)")
	cmd.Flags().StringVar(&address, "address", "", "Claimed script address to verify (optional)")
	cmd.Flags().Uint64Var(&constr, "constr", 0, "Redeemer constructor index for the withdraw path")
	cmd.Flags().Uint64Var(&exMem, "ex-mem", 0, "Execution memory budget (0 = chain default)")
	cmd.Flags().Uint64Var(&exSteps, "ex-steps", 0, "Execution steps budget (0 = chain default)")
	return cmd
}

func deployCmd(conf *vault.Config) *cobra.Command {
	cmd := registerCmd(conf)
	cmd.Use = "deploy <script-hex-file>"
	cmd.Short = "Register a script and print the address to fund"
	inner := cmd.Run
	cmd.Run = func(c *cobra.Command, args []string) {
		inner(c, args)
		fmt.Fprintln(os.Stderr, "fund the printed address, then run: agentvault status <id>")
	}
	return cmd
}

func withdrawCmd(conf *vault.Config) *cobra.Command {
	var to, amount string
	var all, test bool
	cmd := &cobra.Command{
		Use:   "withdraw <entry-id>",
		Short: "Withdraw funds from a registered contract",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if to == "" {
				fail(vault.NewErr(vault.BadRequest, "missing --to address"))
			}
			if !all && amount == "" {
				fail(vault.NewErr(vault.BadRequest, "need --amount <ada> or --all"))
			}
			req := vault.WithdrawRequest{
				EntryID: args[0],
				To:      cardano.Address(to),
				All:     all,
				Test:    test,
			}
			if amount != "" {
				lovelace, err := vault.ParseAda(amount)
				if err != nil {
					fail(err)
				}
				req.AmountLovelace = lovelace
			}
			api, closeStore := buildAPI(*conf)
			defer closeStore()
			ctx, cancel := cancelOnSignal()
			defer cancel()
			result, err := api.Withdraw(ctx, req)
			if err != nil {
				fail(err)
			}
			printJSON(result)
			if result.Pending {
				fmt.Fprintln(os.Stderr, "submitted, confirmation pending; check again with: agentvault status "+args[0])
			}
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination address")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in ADA (decimal)")
	cmd.Flags().BoolVar(&all, "all", false, "Withdraw the entire balance")
	cmd.Flags().BoolVar(&test, "test", false, "Treat a confirmed withdrawal as the testing->active promotion")
	return cmd
}

func statusCmd(conf *vault.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status <entry-id>",
		Short: "Show a contract's registry entry, live balance and audit trail",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			api, closeStore := buildAPI(*conf)
			defer closeStore()
			status, err := api.ContractStatus(context.Background(), args[0])
			if err != nil {
				fail(err)
			}
			printJSON(status)
		},
	}
}

func contractsCmd(conf *vault.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List all registry entries",
		Run: func(cmd *cobra.Command, args []string) {
			api, closeStore := buildAPI(*conf)
			defer closeStore()
			list, err := api.ListContracts()
			if err != nil {
				fail(err)
			}
			printJSON(list)
		},
	}
}
