package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nihei9/genfuzz/codec"
)

var decodeFlags = struct {
	source    *string
	codecName *string
	format    *string
}{}

const (
	decodeFormatText = "text"
	decodeFormatJSON = "json"
)

func init() {
	cmd := &cobra.Command{
		Use:     "decode",
		Short:   "Decode a persisted tree and print its text or re-encoded form",
		Example: `  genfuzz decode -s output.fb --codec flatbuffers --format text`,
		Args:    cobra.NoArgs,
		RunE:    runDecode,
	}
	decodeFlags.source = cmd.Flags().StringP("source", "s", "", "encoded tree file path (default stdin)")
	decodeFlags.codecName = cmd.Flags().String("codec", "json", "tree codec the input was encoded with: json|flatbuffers")
	decodeFlags.format = cmd.Flags().StringP("format", "f", decodeFormatText, "output format: text (flattened value) or json (re-encode with codec.JSONCodec, regardless of --codec)")
	rootCmd.AddCommand(cmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	var tc codec.TreeCodec
	switch *decodeFlags.codecName {
	case "json":
		tc = codec.JSONCodec{}
	case "flatbuffers":
		tc = codec.FlatBuffersCodec{}
	default:
		return fmt.Errorf("unknown codec: %v", *decodeFlags.codecName)
	}

	src := os.Stdin
	if *decodeFlags.source != "" {
		f, err := os.Open(*decodeFlags.source)
		if err != nil {
			return fmt.Errorf("cannot open the source file %s: %w", *decodeFlags.source, err)
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

	switch *decodeFlags.format {
	case decodeFormatText:
		fmt.Fprintln(os.Stdout, root.Value())
	case decodeFormatJSON:
		out, err := (codec.JSONCodec{}).Encode(root)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
	default:
		return fmt.Errorf("invalid output format: %v", *decodeFlags.format)
	}
	return nil
}
