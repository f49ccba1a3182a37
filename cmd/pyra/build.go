package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pyra-compiler/pkg/config"
	"pyra-compiler/pkg/utils"
)

func buildCmd() *cobra.Command {
	var outDir string
	var noHarden bool
	var guardSlot uint64

	cmd := &cobra.Command{
		Use:   "build <file>",
		Short: "compile a Pyra source file to EVM bytecode and ABI JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return utils.Wrap(err, "read source")
			}

			dir := outDir
			if dir == "" {
				dir = config.AppConfig.Build.OutDir
			}
			if dir == "" || dir == "." {
				dir = filepath.Dir(path)
			}

			opts := buildOptions{
				Harden:          !noHarden,
				ReentrancyGuard: cmd.Flags().Changed("guard"),
				LockSlot:        guardSlot,
			}

			res, err := compile(string(data), opts)
			if err != nil {
				return err
			}

			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

			binPath := filepath.Join(dir, stem+".bin")
			if err := os.WriteFile(binPath, []byte(res.DeployHex), 0o644); err != nil {
				return utils.Wrap(err, "write bytecode")
			}

			abiPath := filepath.Join(dir, stem+".abi")
			if err := os.WriteFile(abiPath, []byte(res.ABI), 0o644); err != nil {
				return utils.Wrap(err, "write abi")
			}

			fmt.Printf("wrote %s and %s\n", binPath, abiPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: the input file's directory)")
	cmd.Flags().BoolVar(&noHarden, "no-harden", false, "skip checked-arithmetic hardening")
	cmd.Flags().Uint64Var(&guardSlot, "guard", 0, "storage slot for the reentrancy guard; passing this flag enables the guard")

	return cmd
}
