package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tml/internal/diag"
	"tml/internal/driver"
	"tml/internal/project"
)

var (
	emitOutput  string
	emitNoCache bool
)

func init() {
	emitCmd.Flags().StringVarP(&emitOutput, "output", "o", "", "write module text to this file (default: stdout)")
	emitCmd.Flags().BoolVar(&emitNoCache, "no-cache", false, "skip the user-level artifact cache")
}

var emitCmd = &cobra.Command{
	Use:   "emit [flags] <input>",
	Short: "Lower one module input to LLVM-flavored IR",
	Long:  "Emit reads a serialized module input and writes the lowered module text.",
	Args:  cobra.ExactArgs(1),
	RunE:  emitExecution,
}

func emitExecution(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	input, err := driver.ReadInput(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	var cache *driver.Cache
	if !emitNoCache {
		cache, err = driver.OpenUserCache("tml")
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
	}
	maxDiags, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}

	compiler := driver.Compiler{Cache: cache, MaxDiags: maxDiags}
	unit := driver.Unit{
		Name:   input.Name,
		Digest: project.HashBytes(raw),
		Input:  input,
	}
	res, err := compiler.CompileUnit(context.Background(), unit)
	if err != nil {
		return err
	}

	diag.Print(cmd.ErrOrStderr(), nil, res.Bag)
	if showTimings(cmd) && !res.FromCache {
		renderTimings(cmd.ErrOrStderr(), res.Name, res.Timing)
	}
	if res.HasErrors {
		return fmt.Errorf("unit %q had errors", res.Name)
	}

	if emitOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), res.IR)
		return err
	}
	return os.WriteFile(emitOutput, []byte(res.IR), 0o644)
}
