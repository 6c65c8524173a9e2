package cmd

import (
	"fmt"

	"github.com/michaelpento.lv/arbengine/cmd/engine"
	"github.com/michaelpento.lv/arbengine/config"
	"github.com/michaelpento.lv/arbengine/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var once bool

// newEngine loads environment, config and secrets, then builds the engine.
func newEngine(log *zap.Logger) (*engine.Engine, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Logger = log

	secrets, err := config.LoadSecureConfig()
	if err != nil {
		return nil, fmt.Errorf("loading secrets: %w", err)
	}

	return engine.New(cfg, secrets, log)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the arbitrage engine",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		eng, err := newEngine(log)
		if err != nil {
			log.Fatal("Failed to create engine", zap.Error(err))
		}
		defer eng.Stop()

		ctx := cmd.Context()
		if once {
			if err := eng.RunOnce(ctx); err != nil {
				log.Fatal("Cycle failed", zap.Error(err))
			}
			return
		}

		if err := eng.Start(ctx); err != nil {
			log.Fatal("Failed to start engine", zap.Error(err))
		}
		<-ctx.Done()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&once, "once", false, "run a single decision cycle and exit")
}
