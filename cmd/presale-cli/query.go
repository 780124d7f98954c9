package main

import (
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
)

func runConfig(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	view, code := fetchConfig(env)
	if view == nil {
		return code
	}
	return env.printJSON(view)
}

func runHistory(env *cliEnv, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	buyerFlag := fs.String("buyer", "", "only show purchases by this identity")
	after := fs.Uint64("after", 0, "start after this log sequence")
	limit := fs.Int("limit", 50, "maximum number of records")
	asJSON := fs.Bool("json", false, "print raw JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var buyer crypto.Identity
	if raw := strings.TrimSpace(*buyerFlag); raw != "" {
		parsed, err := crypto.ParseIdentity(raw)
		if err != nil {
			return env.fail("Error: invalid --buyer: %v", err)
		}
		buyer = parsed
	}
	c, err := env.client()
	if err != nil {
		return env.fail("Error: %v", err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	page, err := c.Log(ctx, buyer, *after, *limit)
	if err != nil {
		return env.fail("Error fetching history: %v", err)
	}
	if *asJSON {
		return env.printJSON(page)
	}

	w := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tBUYER\tCURRENCY\tPAID\tALLOCATION")
	purchases := 0
	for _, entry := range page.Records {
		if entry.Kind != presale.LogKindPurchase || entry.Purchase == nil {
			continue
		}
		p := entry.Purchase
		paid := p.StableAmount
		if p.Currency == presale.CurrencyNative {
			paid = p.NativeAmount
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n", entry.Seq,
			time.Unix(p.Timestamp, 0).UTC().Format(time.RFC3339), p.Buyer, p.Currency, paid, p.AllocationAmount)
		purchases++
	}
	if err := w.Flush(); err != nil {
		return env.fail("Error: %v", err)
	}
	if purchases == 0 {
		fmt.Fprintln(env.stdout, "No purchases found.")
	}
	fmt.Fprintf(env.stdout, "next cursor: %d (head %d)\n", page.Next, page.Head)
	return 0
}
