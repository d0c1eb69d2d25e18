package main

import (
	"github.com/pilab-dev/cartbuilder/cmd/storefrontctl/cmd"
)

func main() {
	cmd.Execute()
}
