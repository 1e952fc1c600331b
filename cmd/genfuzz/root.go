package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "genfuzz",
	Short: "Generate, mutate, and validate random test inputs from a grammar",
	Long: `genfuzz provides:
- Random generation of test inputs from a grammar.
- Mutation and recombination of a population of inputs.
- Reconstruction of a generation tree from an externally parsed input.
- A self-check that validates a generated or decoded tree against its grammar.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}
