package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type walletsCmd struct {
	add    string
	chains string
	remove string
}

func (*walletsCmd) Name() string     { return "wallets" }
func (*walletsCmd) Synopsis() string { return "list, add or remove tracked wallets" }
func (*walletsCmd) Usage() string {
	return `wallets [-add <address> [-chains eth,polygon] | -remove <address>]

  Without flags, lists the tracked wallets.
`
}

func (c *walletsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.add, "add", "", "Address of a wallet to track")
	f.StringVar(&c.chains, "chains", "", "Comma separated chains of the added wallet (default eth)")
	f.StringVar(&c.remove, "remove", "", "Address of a wallet to stop tracking")
}

func (c *walletsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.add != "" && c.remove != "" {
		fmt.Fprintln(os.Stderr, "Error: -add and -remove are mutually exclusive.")
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	switch {
	case c.add != "":
		var chains []string
		if c.chains != "" {
			chains = strings.Split(c.chains, ",")
		}
		w, err := a.wallets.Add(ctx, c.add, chains)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Added %s (%s)\n", w.Address, strings.Join(w.ChainsOrDefault(), ","))
	case c.remove != "":
		if err := a.wallets.Remove(ctx, c.remove); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Removed %s\n", c.remove)
	default:
		for _, w := range a.wallets.List() {
			fmt.Printf("%s\t%s\n", w.Address, strings.Join(w.ChainsOrDefault(), ","))
		}
	}
	return subcommands.ExitSuccess
}
