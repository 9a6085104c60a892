package main

import (
	"github.com/spf13/cobra"

	"github.com/commandpost/dispatch-core/config"
	"github.com/commandpost/dispatch-core/console"
)

var consoleUnit string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the dispatcher terminal console",
	Long:  "console opens the interactive dispatcher view: call queue, unit board, timeline and map, backed by an offline-durable mutation queue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if consoleUnit != "" {
			cfg.Client.UnitScope = consoleUnit
		}
		return console.Run(cfg.Client)
	},
}

func init() {
	consoleCmd.Flags().StringVar(&consoleUnit, "unit", "", "scope realtime notifications to one unit id")
}
