package gen

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nihei9/genfuzz/size"
	"github.com/nihei9/genfuzz/tree"
)

// Config is §4.10's configuration table, resolved into runtime values.
// Transformers and Serializer are plain Go closures rather than config-file
// primitives; FileConfig.Resolve turns a loaded FileConfig's serializable
// fields into the closures this struct needs, using a caller-supplied
// transformer registry.
type Config struct {
	Rule  string
	Limit size.Budget

	EnableGenerate     bool
	EnableMutate       bool
	EnableRecombine    bool
	EnableUnrestricted bool

	MemoSize       int
	UniqueAttempts int
	KeepTrees      bool

	Transformers []Transformer
	Serializer   func(*tree.Node) string

	Encoding string
	Errors   string // "strict" | "replace" | "ignore"

	DryRun bool
}

// DefaultSerializer is Config.Serializer's default: the tree's concatenated
// token text, per §4.1's Value().
func DefaultSerializer(root *tree.Node) string {
	return root.Value()
}

// FileConfig is the on-disk TOML shape a Config can be loaded from for
// options that are awkward as flags (per-run transformer pipelines), per
// SPEC_FULL §4.0's ambient-stack note.
type FileConfig struct {
	Rule           string   `toml:"rule"`
	MaxDepth       int      `toml:"max_depth"`
	MaxTokens      int      `toml:"max_tokens"`
	Generate       bool     `toml:"generate"`
	Mutate         bool     `toml:"mutate"`
	Recombine      bool     `toml:"recombine"`
	Unrestricted   bool     `toml:"unrestricted"`
	MemoSize       int      `toml:"memo_size"`
	UniqueAttempts int      `toml:"unique_attempts"`
	KeepTrees      bool     `toml:"keep_trees"`
	Transformers   []string `toml:"transformers"`
	Encoding       string   `toml:"encoding"`
	Errors         string   `toml:"errors"`
	DryRun         bool     `toml:"dry_run"`
}

// LoadConfigFile reads and decodes a TOML config file, following the
// pack's toml.Unmarshal(data, &v) usage rather than toml.Decode(reader, &v).
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Resolve turns a decoded FileConfig into a runtime Config, looking up each
// named transformer (optionally "name:arg") in reg.
func (fc *FileConfig) Resolve(reg map[string]func(arg string) Transformer) (*Config, error) {
	c := &Config{
		Rule:               fc.Rule,
		Limit:              size.New(fc.MaxDepth, fc.MaxTokens),
		EnableGenerate:     fc.Generate,
		EnableMutate:       fc.Mutate,
		EnableRecombine:    fc.Recombine,
		EnableUnrestricted: fc.Unrestricted,
		MemoSize:           fc.MemoSize,
		UniqueAttempts:     fc.UniqueAttempts,
		KeepTrees:          fc.KeepTrees,
		Serializer:         DefaultSerializer,
		Encoding:           fc.Encoding,
		Errors:             fc.Errors,
		DryRun:             fc.DryRun,
	}
	for _, entry := range fc.Transformers {
		name, arg := entry, ""
		if i := strings.IndexByte(entry, ':'); i >= 0 {
			name, arg = entry[:i], entry[i+1:]
		}
		ctor, ok := reg[name]
		if !ok {
			return nil, unknownTransformerError(name)
		}
		c.Transformers = append(c.Transformers, ctor(arg))
	}
	return c, nil
}

type unknownTransformerError string

func (e unknownTransformerError) Error() string {
	return "unknown transformer: " + string(e)
}
