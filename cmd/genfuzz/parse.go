package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nihei9/genfuzz/codec"
	"github.com/nihei9/genfuzz/parseadapt"
)

var parseFlags = struct {
	source    *string
	output    *string
	libPath   *string
	codecName *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "parse <grammar file path>",
		Short: "Reconstruct a generation tree from an externally parsed input",
		Example: `  genfuzz parse grammar.genfuzz -s ext-tree.json -o out.json
  cat ext-tree.json | genfuzz parse grammar.genfuzz`,
		Args: cobra.ExactArgs(1),
		RunE: runParse,
	}
	parseFlags.source = cmd.Flags().StringP("source", "s", "", "external parse tree JSON file path (default stdin)")
	parseFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	parseFlags.libPath = cmd.Flags().String("lib-path", "", "directory imported grammars are resolved from (default: $GENFUZZ_LIB_PATH)")
	parseFlags.codecName = cmd.Flags().String("codec", "json", "tree codec the reconstructed tree is written with: json|flatbuffers")
	rootCmd.AddCommand(cmd)
}

// extNode is a JSON-decodable shape satisfying parseadapt.ExternalNode: the
// wire format an external ANTLR-style parse (ParserRuleContext/TerminalNode
// pair) is expected to be flattened to before reaching this command, since
// no ANTLR runtime is part of this repository (§1 Non-goals).
type extNode struct {
	Rule     string     `json:"rule,omitempty"`
	Terminal bool       `json:"terminal,omitempty"`
	Token    string     `json:"token_name,omitempty"`
	Value    string     `json:"text,omitempty"`
	IsHidden bool       `json:"hidden,omitempty"`
	Kids     []*extNode `json:"children,omitempty"`
}

func (n *extNode) RuleName() string  { return n.Rule }
func (n *extNode) IsTerminal() bool  { return n.Terminal }
func (n *extNode) TokenName() string { return n.Token }
func (n *extNode) Text() string      { return n.Value }
func (n *extNode) Hidden() bool      { return n.IsHidden }
func (n *extNode) Children() []parseadapt.ExternalNode {
	out := make([]parseadapt.ExternalNode, len(n.Kids))
	for i, k := range n.Kids {
		out[i] = k
	}
	return out
}

func runParse(cmd *cobra.Command, args []string) error {
	grmPath := args[0]
	g, err := readGrammar(grmPath, *parseFlags.libPath)
	if err != nil {
		return explainGrammarError(grmPath, err)
	}

	src := os.Stdin
	if *parseFlags.source != "" {
		f, err := os.Open(*parseFlags.source)
		if err != nil {
			return fmt.Errorf("cannot open the source file %s: %w", *parseFlags.source, err)
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	var ext extNode
	if err := json.Unmarshal(data, &ext); err != nil {
		return fmt.Errorf("cannot decode the external parse tree: %w", err)
	}

	root, err := parseadapt.New(g).Adapt(&ext)
	if err != nil {
		return err
	}

	var tc codec.TreeCodec
	switch *parseFlags.codecName {
	case "json":
		tc = codec.JSONCodec{}
	case "flatbuffers":
		tc = codec.FlatBuffersCodec{}
	default:
		return fmt.Errorf("unknown codec: %v", *parseFlags.codecName)
	}
	out, err := tc.Encode(root)
	if err != nil {
		return err
	}

	if *parseFlags.output != "" {
		return os.WriteFile(*parseFlags.output, out, 0644)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
