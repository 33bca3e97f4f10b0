package main

import "github.com/tradelayer/tradelayerd/cmds"

func main() {
	cmds.Execute()
}
