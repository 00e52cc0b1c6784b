package main

import (
	"os"

	"github.com/semtab/semtab-cli/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
