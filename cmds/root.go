package cmds

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tradelayer/tradelayerd/global"
)

var rootCmd = &cobra.Command{
	Use:   "tradelayerd",
	Short: "token-layer consensus engine on a UTXO carrier ledger",
	Long:  global.BannerString(),
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(initCmd(), startCmd())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
