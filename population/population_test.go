package population

import (
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihei9/genfuzz/tree"
)

// textCodec is a trivial stand-in for the real codec package, sufficient to
// exercise FilePopulation's persistence path without introducing a
// population->codec import.
type textCodec struct{}

func (textCodec) Encode(root *tree.Node) ([]byte, error) {
	return []byte(root.Value()), nil
}

func (textCodec) Decode(data []byte) (*tree.Node, error) {
	n := tree.NewUnlexerRule("")
	n.SetSrc(string(data))
	return n, nil
}

func TestMemoryPopulationEmptyAndSelect(t *testing.T) {
	p := NewMemoryPopulation(rand.New(rand.NewSource(1)))
	require.True(t, p.Empty())

	_, err := p.SelectIndividual(nil)
	require.Error(t, err)

	root := tree.NewUnlexerRule("")
	root.SetSrc("hello")
	require.NoError(t, p.AddIndividual(root, ""))
	require.False(t, p.Empty())

	ind, err := p.SelectIndividual(nil)
	require.NoError(t, err)
	require.Equal(t, "hello", ind.Root.Value())
}

func TestFilePopulationPersistsAndResumes(t *testing.T) {
	dir := t.TempDir()

	p1, err := OpenFilePopulation(dir, textCodec{}, rand.New(rand.NewSource(2)), nil)
	require.NoError(t, err)
	require.True(t, p1.Empty())

	root := tree.NewUnlexerRule("")
	root.SetSrc("abc")
	require.NoError(t, p1.AddIndividual(root, ""))
	require.False(t, p1.Empty())

	// Re-open against the same directory; the manifest should let the new
	// instance see the individual without re-scanning.
	p2, err := OpenFilePopulation(dir, textCodec{}, rand.New(rand.NewSource(3)), nil)
	require.NoError(t, err)
	require.False(t, p2.Empty())

	ind, err := p2.SelectIndividual(nil)
	require.NoError(t, err)
	require.Equal(t, "abc", ind.Root.Value())
}

func TestFilePopulationAddIndividualUsesPathHint(t *testing.T) {
	dir := t.TempDir()
	p, err := OpenFilePopulation(dir, textCodec{}, rand.New(rand.NewSource(4)), nil)
	require.NoError(t, err)

	root := tree.NewUnlexerRule("")
	root.SetSrc("x")
	require.NoError(t, p.AddIndividual(root, "seed/corpus-1.txt"))

	require.Len(t, p.entries, 1)
	require.True(t, strings.HasPrefix(p.entries[0].FileName, "corpus-1.txt-"))
	require.Equal(t, filepath.Base(p.entries[0].FileName), p.entries[0].FileName)
}
