package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/cli"
	"github.com/aretw0/colloquy/internal/logging"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo [dialogue]",
	Short: "Talk to a sample dialogue from the terminal",
	Long:  `Runs one of the bundled dialogues (echo, guess) in the terminal, one line per turn.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Logs stay quiet unless asked for, so they do not interleave with the dialogue.
		logger := logging.NewNop()
		if cmd.Flags().Changed("log-level") {
			if logger, err = newLogger(cfg); err != nil {
				return err
			}
		}

		name := "echo"
		if len(args) == 1 {
			name = args[0]
		}

		var param any
		if raw, _ := cmd.Flags().GetString("param"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &param); err != nil {
				return fmt.Errorf("invalid --param: %w", err)
			}
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Stop()

		host, closer, err := newHost(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer closer.Close()
		defer host.Shutdown()

		if cli.IsTerminal(os.Stdout) {
			cli.PrintBanner(os.Stdout, colloquy.Version)
		}

		demo := &cli.Demo{
			Host:        host,
			In:          os.Stdin,
			Out:         os.Stdout,
			Logger:      logger,
			TurnTimeout: cfg.Timeouts.ReceiveFromDialogue,
			StopWait:    cfg.Timeouts.StopWait,
		}
		return demo.Run(ctx, name, param)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().String("param", "", `JSON parameter passed to the dialogue, e.g. '{"max": 10}'`)
}
