package main

import (
	"os"

	"github.com/spf13/cobra"

	"pyra-compiler/pkg/config"
)

func main() {
	if _, err := config.LoadFromEnv(); err != nil {
		log.Warnf("config load: %v", err)
	}

	root := &cobra.Command{Use: "pyra"}
	root.AddCommand(buildCmd())
	root.AddCommand(gasCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
