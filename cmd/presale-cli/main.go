package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/S3MTFoundationv0/s3mt.xyz/rpc/client"
)

const (
	rpcURLEnv      = "PRESALE_RPC_URL"
	passphraseEnv  = "PRESALE_KEYSTORE_PASS"
	requestTimeout = 15 * time.Second
)

type command struct {
	name    string
	summary string
	run     func(env *cliEnv, args []string) int
}

// cliEnv carries the shared settings of a single invocation.
type cliEnv struct {
	rpcURL string
	stdout io.Writer
	stderr io.Writer
}

var commands = []command{
	{"keygen", "Create a new encrypted keystore", runKeygen},
	{"address", "Print the identity stored in a keystore", runAddress},
	{"derive", "Derive the associated token account of an owner for a mint", runDerive},
	{"initialize", "Create the presale configuration (admin)", runInitialize},
	{"purchase-stable", "Buy an allocation with the accepted stable asset", runPurchaseStable},
	{"purchase-native", "Buy an allocation with native currency", runPurchaseNative},
	{"update-config", "Change treasury, pause flag or accepted asset (admin)", runUpdateConfig},
	{"config", "Show the committed presale configuration", runConfig},
	{"history", "List purchase history", runHistory},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	env := &cliEnv{rpcURL: defaultRPCEndpoint(), stdout: stdout, stderr: stderr}
	args, err := applyGlobalFlags(env, args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprint(stderr, usage())
		return 1
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprint(stdout, usage())
		return 0
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(env, args[1:])
		}
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n", name)
	fmt.Fprint(stderr, usage())
	return 1
}

func usage() string {
	buf := &bytes.Buffer{}
	fmt.Fprintln(buf, "Usage: presale-cli [--rpc URL] <command> [flags]")
	fmt.Fprintln(buf)
	fmt.Fprintln(buf, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(buf, "  %-16s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(buf)
	fmt.Fprintf(buf, "The node URL defaults to $%s. Keystore passphrases are read from $%s or the terminal.\n", rpcURLEnv, passphraseEnv)
	return buf.String()
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func applyGlobalFlags(env *cliEnv, args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			env.rpcURL = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			env.rpcURL = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func (e *cliEnv) client() (*client.Client, error) {
	return client.New(client.Config{BaseURL: e.rpcURL, Timeout: requestTimeout})
}

func (e *cliEnv) printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(e.stderr, "Error encoding output: %v\n", err)
		return 1
	}
	fmt.Fprintln(e.stdout, string(data))
	return 0
}

func (e *cliEnv) fail(format string, args ...any) int {
	fmt.Fprintf(e.stderr, format+"\n", args...)
	return 1
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
