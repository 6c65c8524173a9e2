package cmd

import (
	"context"

	"github.com/michaelpento.lv/arbengine/utils"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "arbengine",
	Short: "A cross-venue arbitrage engine for constant-product pools",
	Long: `A decision-and-execution engine that reads reserves from constant-product
venues, scores every pool pair by price spread and, when the spread covers
trading fees, the flash-loan fee and gas, executes a two-leg swap financed
by a flash loan.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.arbengine.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
