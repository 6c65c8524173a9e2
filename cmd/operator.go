package cmd

import (
	"github.com/michaelpento.lv/arbengine/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fundAmount int64

var fundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Deposit base-asset liquidity with the flash lender",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		eng, err := newEngine(log)
		if err != nil {
			log.Fatal("Failed to create engine", zap.Error(err))
		}
		defer eng.Stop()

		if err := eng.FundLender(cmd.Context(), fundAmount); err != nil {
			log.Fatal("Funding failed", zap.Error(err))
		}
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Sweep accumulated profits from the executor contract",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		eng, err := newEngine(log)
		if err != nil {
			log.Fatal("Failed to create engine", zap.Error(err))
		}
		defer eng.Stop()

		if err := eng.WithdrawProfits(cmd.Context()); err != nil {
			log.Fatal("Withdraw failed", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(withdrawCmd)
	fundCmd.Flags().Int64Var(&fundAmount, "amount", 0, "whole tokens of the base asset to deposit")
}
