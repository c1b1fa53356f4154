package main

import (
	"os"

	"github.com/equicloud/equicloud/cmd/equicloud/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
