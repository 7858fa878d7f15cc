package main

import (
	"fmt"
	"os"

	"github.com/stockroom/stockroom/cmd/stockctl/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.Deps{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
