package node

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/tradelayer/tradelayerd/api/server"
	"github.com/tradelayer/tradelayerd/global"
)

func (n *Node) startAPIServer() {
	port := viper.GetInt(global.ConfigKeyAPIPort)
	if port == 0 {
		port = global.DefaultAPIPort
	}
	addr := fmt.Sprintf(":%d", port)
	n.Log().Infof("starting API server on %s", addr)

	go server.Run(addr, n)
}
