package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/personafeed/config"
	"github.com/mohammad-safakhou/personafeed/internal/curation"
)

// curateCMD runs the pipeline once from the terminal, printing every event
// as a JSON line. Handy for checking collaborator configuration without a
// browser; it is the same pipeline the server streams.
func curateCMD() *cobra.Command {
	var cfgPath string
	var candidateID string
	var curate = &cobra.Command{
		Use:   "curate <name>",
		Short: "Run curation once and print events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			deps, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			orch := curation.NewOrchestrator(cfg, deps)

			enc := json.NewEncoder(os.Stdout)
			emit := func(ev curation.Event) { _ = enc.Encode(ev) }

			if candidateID == "" {
				candidates, err := orch.RunDiscovery(cmd.Context(), args[0], emit)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "found %d candidates; re-run with --candidate <id> to build the feed\n", len(candidates))
				return nil
			}
			return orch.RunFull(cmd.Context(), args[0], candidateID, emit)
		},
	}
	curate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	curate.Flags().StringVar(&candidateID, "candidate", "", "candidate id confirmed from a previous discovery run")

	return curate
}
