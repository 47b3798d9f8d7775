package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/autodev/internal/agent"
	"github.com/p-blackswan/autodev/internal/metrics"
)

var writeSchema bool

var extractCmd = &cobra.Command{
	Use:   "extract-endpoints",
	Short: "List the REST endpoints of the generated backend code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ws := newWorkspace(cfg, logger)
		dev := agent.NewBackendDeveloper(newRequester(cfg, metrics.New(), logger), ws, agent.WithLogger(logger))

		routes, err := dev.ExtractAPIEndpoints(cmd.Context())
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(routes, "", "  ")
		if err != nil {
			return err
		}
		if writeSchema {
			if err := ws.WriteAPISchema(string(out)); err != nil {
				return err
			}
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&writeSchema, "write", false, "Also write the result to API_SCHEMA_PATH")
	rootCmd.AddCommand(extractCmd)
}
