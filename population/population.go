// Package population implements the abstract individual store of §4.7: a
// small set of encoded trees that the mutation/recombination operators draw
// donors and recipients from, plus a file-backed default implementation that
// persists individuals under a directory and resumes across runs without
// re-scanning it.
package population

import (
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/dekarrin/rezi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nihei9/genfuzz/tree"
)

// Individual is one member of a population: the tree itself plus the id it
// is filed under.
type Individual struct {
	ID   uuid.UUID
	Root *tree.Node
}

// Population is the abstract contract §4.7 describes. Implementations need
// not be safe for concurrent use unless documented otherwise.
type Population interface {
	// Empty reports whether the population currently holds no individuals.
	Empty() bool

	// AddIndividual adds root to the population. path is an optional
	// caller-supplied hint (e.g. the source file an initial corpus entry
	// was read from); implementations may ignore it.
	AddIndividual(root *tree.Node, path string) error

	// SelectIndividual samples one individual. If recipient is nil, the
	// selection is for a mutation/recombination recipient; if recipient is
	// non-nil, the selection is for a donor and may return recipient itself
	// (repeats are allowed per §4.7).
	SelectIndividual(recipient *tree.Node) (*Individual, error)
}

// Codec is the minimal subset of codec.TreeCodec a Population needs to
// persist individuals to bytes and back. Kept as a local interface (rather
// than importing package codec directly) so population has no compile-time
// dependency on the codec package's FlatBuffers/JSON choice.
type Codec interface {
	Encode(root *tree.Node) ([]byte, error)
	Decode(data []byte) (*tree.Node, error)
}

// MemoryPopulation is a simple in-process Population backed by a slice,
// useful for tests and for short-lived runs that don't need persistence.
type MemoryPopulation struct {
	Rand *rand.Rand

	mu    sync.Mutex
	items []*Individual
}

func NewMemoryPopulation(rnd *rand.Rand) *MemoryPopulation {
	return &MemoryPopulation{Rand: rnd}
}

func (p *MemoryPopulation) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items) == 0
}

func (p *MemoryPopulation) AddIndividual(root *tree.Node, _ string) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.items = append(p.items, &Individual{ID: id, Root: root})
	p.mu.Unlock()
	return nil
}

func (p *MemoryPopulation) SelectIndividual(recipient *tree.Node) (*Individual, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.items) == 0 {
		return nil, errEmptyPopulation
	}
	_ = recipient // a donor may repeat a recipient; uniform sampling needs no exclusion
	return p.items[p.Rand.Intn(len(p.items))], nil
}

var errEmptyPopulation = populationError("population is empty")

type populationError string

func (e populationError) Error() string { return string(e) }
