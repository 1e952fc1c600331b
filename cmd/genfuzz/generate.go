package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nihei9/genfuzz/codec"
	"github.com/nihei9/genfuzz/conformance"
	"github.com/nihei9/genfuzz/gen"
	"github.com/nihei9/genfuzz/model"
	"github.com/nihei9/genfuzz/mutate"
	"github.com/nihei9/genfuzz/population"
	"github.com/nihei9/genfuzz/runtime"
	"github.com/nihei9/genfuzz/size"
)

var generateFlags = struct {
	rule           *string
	maxDepth       *int
	maxTokens      *int
	count          *int
	seed           *int64
	libPath        *string
	config         *string
	populationDir  *string
	codecName      *string
	out            *string
	enableMutate   *bool
	enableRecomb   *bool
	unrestricted   *bool
	uniqueAttempts *int
	memoSize       *int
	separator      *string
	selfCheck      *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "generate <grammar file path>",
		Short:   "Generate random test inputs from a grammar",
		Example: `  genfuzz generate grammar.genfuzz -n 10 --rule start`,
		Args:    cobra.ExactArgs(1),
		RunE:    runGenerate,
	}
	generateFlags.rule = cmd.Flags().StringP("rule", "r", "", "start rule (default: the grammar's default rule)")
	generateFlags.maxDepth = cmd.Flags().Int("max-depth", 50, "maximum derivation depth")
	generateFlags.maxTokens = cmd.Flags().Int("max-tokens", 1000, "maximum token count")
	generateFlags.count = cmd.Flags().IntP("count", "n", 1, "number of outputs to produce")
	generateFlags.seed = cmd.Flags().Int64("seed", 0, "random seed (default: $GENFUZZ_SEED, else time-based)")
	generateFlags.libPath = cmd.Flags().String("lib-path", "", "directory imported grammars are resolved from (default: $GENFUZZ_LIB_PATH)")
	generateFlags.config = cmd.Flags().StringP("config", "c", "", "TOML config file (see gen.FileConfig)")
	generateFlags.populationDir = cmd.Flags().String("population", "", "directory of a persistent population to seed mutation/recombination from and add kept outputs to")
	generateFlags.codecName = cmd.Flags().String("codec", "json", "tree codec used for the population directory: json|flatbuffers")
	generateFlags.out = cmd.Flags().StringP("out", "o", "", "output directory for generated text (default: stdout)")
	generateFlags.enableMutate = cmd.Flags().Bool("mutate", false, "enable mutation operators once the population is non-empty")
	generateFlags.enableRecomb = cmd.Flags().Bool("recombine", false, "enable recombination operators once the population is non-empty")
	generateFlags.unrestricted = cmd.Flags().Bool("unrestricted", false, "allow the unrestricted_delete/unrestricted_hoist_rule operators")
	generateFlags.uniqueAttempts = cmd.Flags().Int("unique-attempts", 10, "retries allowed before giving up on a duplicate output")
	generateFlags.memoSize = cmd.Flags().Int("memo-size", 1000, "bounded FIFO size of the recent-output dedup memo")
	generateFlags.separator = cmd.Flags().String("insert-separator", "", "insert this literal text between adjacent quantified repetitions")
	generateFlags.selfCheck = cmd.Flags().Bool("self-check", false, "validate every generated tree against the grammar before printing it")
	rootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	grmPath := args[0]
	g, err := readGrammar(grmPath, *generateFlags.libPath)
	if err != nil {
		return explainGrammarError(grmPath, err)
	}

	seed := resolveSeed(*generateFlags.seed, cmd.Flags().Changed("seed"))
	rnd := newRand(seed)
	log := newLogger()

	cfg := gen.Config{
		Rule:               *generateFlags.rule,
		Limit:              size.New(*generateFlags.maxDepth, *generateFlags.maxTokens),
		EnableGenerate:     true,
		EnableMutate:       *generateFlags.enableMutate,
		EnableRecombine:    *generateFlags.enableRecomb,
		EnableUnrestricted: *generateFlags.unrestricted,
		MemoSize:           *generateFlags.memoSize,
		UniqueAttempts:     *generateFlags.uniqueAttempts,
		KeepTrees:          *generateFlags.populationDir != "",
	}
	if *generateFlags.separator != "" {
		cfg.Transformers = append(cfg.Transformers, gen.InsertSeparator(*generateFlags.separator))
	}
	if *generateFlags.config != "" {
		fc, err := gen.LoadConfigFile(*generateFlags.config)
		if err != nil {
			return fmt.Errorf("cannot read the config file %s: %w", *generateFlags.config, err)
		}
		resolved, err := fc.Resolve(transformerRegistry)
		if err != nil {
			return err
		}
		cfg = *resolved
	}

	runnerGen := runtime.NewGenerator(g, model.NewDefaultModel(rnd), rnd, cfg.Limit)

	var pop population.Population
	var tc codec.TreeCodec
	switch *generateFlags.codecName {
	case "json":
		tc = codec.JSONCodec{}
	case "flatbuffers":
		tc = codec.FlatBuffersCodec{}
	default:
		return fmt.Errorf("unknown codec: %v", *generateFlags.codecName)
	}
	if *generateFlags.populationDir != "" {
		fp, err := population.OpenFilePopulation(*generateFlags.populationDir, tc, rnd, log)
		if err != nil {
			return err
		}
		pop = fp
	}

	me := &mutate.Engine{Graph: g, Gen: runnerGen, Rand: rnd, Limit: cfg.Limit}
	tool := gen.NewTool(g, runnerGen, me, pop, cfg, log)

	var checker *conformance.Checker
	if *generateFlags.selfCheck {
		checker = conformance.New(g, tc)
	}

	if *generateFlags.out != "" {
		if err := os.MkdirAll(*generateFlags.out, 0755); err != nil {
			return err
		}
	}

	for i := 0; i < *generateFlags.count; i++ {
		res, err := tool.Create()
		if err != nil {
			return fmt.Errorf("generation %d failed: %w", i, err)
		}

		if checker != nil {
			cr := checker.Check(fmt.Sprintf("generation %d", i), res.Tree)
			if cr.Error != nil {
				return fmt.Errorf(cr.String())
			}
		}

		if *generateFlags.out != "" {
			path := filepath.Join(*generateFlags.out, fmt.Sprintf("output-%04d.txt", i))
			if err := os.WriteFile(path, []byte(res.Text), 0644); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(os.Stdout, res.Text)
		}
	}
	return nil
}

// transformerRegistry resolves gen.FileConfig's transformer names into
// closures. "insert_separator:<text>" is the only transformer currently
// shipped; FileConfig.Resolve splits each entry at its first ':' into the
// bare name looked up here and the argument passed on, and reports an
// unrecognized name itself.
var transformerRegistry = map[string]func(arg string) gen.Transformer{
	"insert_separator": func(arg string) gen.Transformer {
		return gen.InsertSeparator(arg)
	},
}
