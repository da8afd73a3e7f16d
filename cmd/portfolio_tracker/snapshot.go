package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	jsoniter "github.com/json-iterator/go"

	"portfolio_tracker/internal/domain/entity"
)

type snapshotCmd struct {
	asJSON bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "run one full refresh cycle and print the portfolio" }
func (*snapshotCmd) Usage() string {
	return `snapshot [-json]

  Fetches every tracked wallet, prices the holdings and prints the
  aggregated portfolio as a table, or as JSON with -json.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print the snapshot as JSON")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.buildPipeline(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := a.portfolio.Refresh(ctx); err != nil {
		fmt.Fprintln(os.Stderr, entity.PortfolioErrorMessage)
		return subcommands.ExitFailure
	}

	snap := a.portfolio.Snapshot()
	if c.asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printSnapshot(os.Stdout, snap)
	return subcommands.ExitSuccess
}

func usd(v float64) string {
	return money.NewFromFloat(v, money.USD).Display()
}

func printSnapshot(out io.Writer, snap *entity.PortfolioSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Symbol\tBalance\tPrice\tValue\tAvg cost\tUnrealized P/L\tChains\t")
	for _, as := range snap.Assets {
		fmt.Fprintf(w, "%s\t%.6f\t%s\t%s\t%s\t%s\t%s\t\n",
			as.Symbol, as.Balance, usd(as.Price), usd(as.Value), usd(as.AvgCost), usd(as.UnrealizedPL),
			strings.Join(as.Chains, ","))
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nTotal value:    %s\n", usd(snap.TotalValue))
	fmt.Fprintf(out, "Total cost:     %s\n", usd(snap.TotalCost))
	fmt.Fprintf(out, "Unrealized P/L: %s\n", usd(snap.UnrealizedPL))
	fmt.Fprintf(out, "Wallets:        %d", snap.WalletCount)
	if snap.PlaceholderWallets > 0 {
		fmt.Fprintf(out, " (%d with placeholder data)", snap.PlaceholderWallets)
	}
	fmt.Fprintf(out, "\nLast updated:   %s\n", snap.LastUpdated.Format("2006-01-02 15:04:05 MST"))
}
