package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/util"
)

const (
	nodeConfigProfile = "tradelayerd.yaml"
	paramsFile        = "tradelayer.params.yaml"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <admin address>",
		Args:  cobra.ExactArgs(1),
		Short: "creates the initial config file for the tradelayerd node",
		Run:   runInitCommand,
	}
}

func runInitCommand(_ *cobra.Command, args []string) {
	if _, err := os.Stat(nodeConfigProfile); err == nil {
		fmt.Printf("'%s' already exists\n", nodeConfigProfile)
		os.Exit(1)
	}
	yamlStr := fmt.Sprintf(configFileTemplate, args[0])
	err := os.WriteFile(nodeConfigProfile, []byte(yamlStr), 0666)
	util.AssertNoError(err)
	fmt.Printf("initial node configuration file has been saved as '%s'\n", nodeConfigProfile)

	err = os.WriteFile(paramsFile, ledger.RegTest.YAMLAble().YAML(), 0666)
	util.AssertNoError(err)
	fmt.Printf("network parameter set has been saved as '%s'\n", paramsFile)
}

const configFileTemplate = `# Configuration of the tradelayerd node

# network parameter set: 'mainnet' or 'regtest'
network: regtest

# address controlling the implied properties and the vesting reserve
admin_address: %s

# name of the state database directory
state_db: tradelayerdb

# how many previous snapshots are retained for reorg rollback
snapshots_retained: 32

# carrier-chain target block interval, seconds
block_interval_sec: 10

# node's API config
api:
  # server port
  port: 8091

logger:
  # verbosity: debug | info | warn | error
  level: info
`
