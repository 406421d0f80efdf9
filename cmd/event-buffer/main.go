package main

import (
	"os"

	"github.com/GabrielNunesIT/event-buffer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
