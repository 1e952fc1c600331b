package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nihei9/genfuzz/codec"
	"github.com/nihei9/genfuzz/conformance"
)

var testFlags = struct {
	libPath   *string
	codecName *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "test <grammar file path> <case file path>|<case directory path>",
		Short:   "Check persisted trees against a grammar's structural invariants",
		Example: `  genfuzz test grammar.genfuzz corpus/`,
		Args:    cobra.ExactArgs(2),
		RunE:    runTest,
	}
	testFlags.libPath = cmd.Flags().String("lib-path", "", "directory imported grammars are resolved from (default: $GENFUZZ_LIB_PATH)")
	testFlags.codecName = cmd.Flags().String("codec", "json", "tree codec the cases were encoded with: json|flatbuffers")
	rootCmd.AddCommand(cmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	grmPath := args[0]
	g, err := readGrammar(grmPath, *testFlags.libPath)
	if err != nil {
		return explainGrammarError(grmPath, err)
	}

	var tc codec.TreeCodec
	switch *testFlags.codecName {
	case "json":
		tc = codec.JSONCodec{}
	case "flatbuffers":
		tc = codec.FlatBuffersCodec{}
	default:
		return fmt.Errorf("unknown codec: %v", *testFlags.codecName)
	}

	cases := conformance.ListCases(args[1], tc)
	errOccurred := false
	for _, c := range cases {
		if c.Error != nil {
			fmt.Fprintf(os.Stderr, "failed to read a case or a directory: %v\n%v\n", c.FilePath, c.Error)
			errOccurred = true
		}
	}
	if errOccurred {
		return errors.New("cannot run test")
	}

	checker := conformance.New(g, tc)
	rs := checker.Run(cases)
	testFailed := false
	for _, r := range rs {
		fmt.Fprintln(os.Stdout, r)
		if r.Error != nil {
			testFailed = true
		}
	}
	if testFailed {
		return errors.New("test failed")
	}
	return nil
}
