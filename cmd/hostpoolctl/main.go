// hostpoolctl probes a configured host pool and reports which endpoints are
// healthy. It exercises the same dispatch path the client library uses, so a
// host that fails the probe shows up as disabled.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	hostpool "github.com/apollon77/go-hostpool"
)

type checkFlags struct {
	configPath string
	probePath  string
	count      int
	verbose    bool
}

func main() {
	root := &cobra.Command{
		Use:           "hostpoolctl",
		Short:         "Inspect and probe a host pool configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCheckCmd() *cobra.Command {
	var flags checkFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dispatch probe requests and print host availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, flags)
		},
	}
	addCheckFlags(cmd.Flags(), &flags)
	return cmd
}

func addCheckFlags(fs *pflag.FlagSet, flags *checkFlags) {
	fs.StringVarP(&flags.configPath, "config", "c", "hostpool.toml", "pool configuration file")
	fs.StringVar(&flags.probePath, "path", "/ping", "request path to probe with")
	fs.IntVarP(&flags.count, "count", "n", 1, "number of probe dispatches")
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "log pool state transitions")
}

func runCheck(cmd *cobra.Command, flags checkFlags) error {
	logger := zap.NewNop()
	if flags.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	cfg, err := hostpool.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}
	pool, err := cfg.NewPool(hostpool.NewHTTPTransport(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	succeeded := 0
	for i := 0; i < flags.count; i++ {
		resp, err := pool.Dispatch(cmd.Context(), "GET", flags.probePath, nil, nil)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "probe %d: %v\n", i+1, err)
			continue
		}
		succeeded++
		fmt.Fprintf(cmd.OutOrStdout(), "probe %d: %s -> %d\n", i+1, resp.Host, resp.StatusCode)
	}

	printHosts(cmd.OutOrStdout(), pool)

	if succeeded == 0 {
		return fmt.Errorf("no probe succeeded against any host")
	}
	return nil
}

func printHosts(out io.Writer, pool hostpool.Pool) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Host", "State"})
	for _, h := range pool.HostsAvailable() {
		table.Append([]string{h, "available"})
	}
	for _, h := range pool.HostsDisabled() {
		table.Append([]string{h, "disabled"})
	}
	table.Render()
}
