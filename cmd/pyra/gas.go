package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pyra-compiler/pkg/config"
	"pyra-compiler/pkg/utils"
)

func gasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gas <file>",
		Short: "print a static gas estimate for a Pyra source file as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return utils.Wrap(err, "read source")
			}

			opts := buildOptions{
				Harden:          config.AppConfig.Build.Harden,
				ReentrancyGuard: config.AppConfig.Build.ReentrancyGuard,
				LockSlot:        config.AppConfig.Build.LockSlot,
			}

			res, err := compile(string(data), opts)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(res.Gas)
			if err != nil {
				return utils.Wrap(err, "marshal gas report")
			}
			fmt.Print(string(out))
			return nil
		},
	}
	return cmd
}
