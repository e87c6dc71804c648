package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tml/internal/observ"
)

func showTimings(cmd *cobra.Command) bool {
	on, err := cmd.Flags().GetBool("timings")
	return err == nil && on
}

func renderTimings(w io.Writer, unit string, report observ.Report) {
	fmt.Fprintf(w, "timings for %s:\n", unit)
	io.WriteString(w, report.String())
}
