package cmds

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tradelayer/tradelayerd/node"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Args:  cobra.NoArgs,
		Short: "starts the tradelayerd node",
		Run:   runStartCommand,
	}
}

func runStartCommand(_ *cobra.Command, _ []string) {
	killChan := make(chan os.Signal, 1)
	signal.Notify(killChan, syscall.SIGINT, syscall.SIGTERM)

	n := node.New()
	go func() {
		<-killChan
		n.Log().Info("received kill signal, stopping the node..")
		n.Stop()
	}()

	n.Start()
	<-n.Ctx().Done()

	n.Wait()
	n.WaitAllDBClosed()
}
