package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nihei9/genfuzz/codec"
	"github.com/nihei9/genfuzz/gen/emit"
)

var processFlags = struct {
	source    *string
	output    *string
	codecName *string
	pkgName   *string
	varName   *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "process",
		Short:   "Render a persisted tree as a standalone Go source file",
		Long:    "process renders a generated or decoded tree as a reference Go source file, the closest this tool comes to a code-emitting backend for a target language. Its output format is a convenience fixture, not a specified contract.",
		Example: `  genfuzz process -s output.json -o corpus_sample.go --package corpus`,
		Args:    cobra.NoArgs,
		RunE:    runProcess,
	}
	processFlags.source = cmd.Flags().StringP("source", "s", "", "encoded tree file path (default stdin)")
	processFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	processFlags.codecName = cmd.Flags().String("codec", "json", "tree codec the input was encoded with: json|flatbuffers")
	processFlags.pkgName = cmd.Flags().StringP("package", "p", "generated", "emitted file's package name")
	processFlags.varName = cmd.Flags().String("var", "Text", "Go identifier the flattened text is assigned to")
	rootCmd.AddCommand(cmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	var tc codec.TreeCodec
	switch *processFlags.codecName {
	case "json":
		tc = codec.JSONCodec{}
	case "flatbuffers":
		tc = codec.FlatBuffersCodec{}
	default:
		return fmt.Errorf("unknown codec: %v", *processFlags.codecName)
	}

	src := os.Stdin
	if *processFlags.source != "" {
		f, err := os.Open(*processFlags.source)
		if err != nil {
			return fmt.Errorf("cannot open the source file %s: %w", *processFlags.source, err)
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	root, err := tc.Decode(data)
	if err != nil {
		return fmt.Errorf("cannot decode the tree: %w", err)
	}

	out, err := emit.Gen(root, emit.Options{PackageName: *processFlags.pkgName, VarName: *processFlags.varName})
	if err != nil {
		return fmt.Errorf("cannot render Go source: %w", err)
	}

	if *processFlags.output != "" {
		return os.WriteFile(*processFlags.output, out, 0644)
	}
	_, err = os.Stdout.Write(out)
	return err
}
