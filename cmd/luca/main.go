package main

import (
	"os"

	"github.com/lucahq/luca/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
