package main

import (
	"os"

	"github.com/securefront/compliance-scheduler/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
