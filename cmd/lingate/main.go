package main

import "github.com/lin-gate/lingate/cmd/lingate/cmd"

func main() {
	cmd.Execute()
}
