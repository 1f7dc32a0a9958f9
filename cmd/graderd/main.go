package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "graderd",
	Short: "graderd - automated grading daemon for Go submissions",
	Long: `graderd statically analyzes student-submitted Go source files, reviews
them against rubrics from the problem bank, detects near-duplicate
submissions, and serves the results over an HTTP API.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
