package population

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/dekarrin/rezi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nihei9/genfuzz/tree"
)

const manifestFileName = ".manifest.rezi"

// manifestEntry is one row of the resume manifest: which individual id maps
// to which file on disk. Kept as plain exported-field structs so rezi's
// generic struct encoding (no BinaryMarshaler required) can round-trip it
// directly.
type manifestEntry struct {
	ID       string
	FileName string
}

// FilePopulation is the file-backed default Population of §4.7: individuals
// are encoded with Codec and written one-per-file under Dir, with a small
// rezi-encoded manifest recording the id->filename mapping so a later run
// can resume without re-scanning and re-decoding the whole directory.
type FilePopulation struct {
	Dir   string
	Codec Codec
	Rand  *rand.Rand
	Log   *logrus.Logger

	mu      sync.Mutex
	entries []manifestEntry
	cache   map[string]*tree.Node
}

// OpenFilePopulation loads (or initializes) a FilePopulation rooted at dir,
// reading the manifest if present.
func OpenFilePopulation(dir string, codec Codec, rnd *rand.Rand, log *logrus.Logger) (*FilePopulation, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("population: cannot create %s: %w", dir, err)
	}
	p := &FilePopulation{
		Dir:   dir,
		Codec: codec,
		Rand:  rnd,
		Log:   log,
		cache: map[string]*tree.Node{},
	}
	if err := p.loadManifest(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FilePopulation) manifestPath() string {
	return filepath.Join(p.Dir, manifestFileName)
}

func (p *FilePopulation) loadManifest() error {
	data, err := os.ReadFile(p.manifestPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("population: reading manifest: %w", err)
	}
	var entries []manifestEntry
	if _, err := rezi.Dec(data, &entries); err != nil {
		p.Log.WithError(err).Warn("population manifest is corrupt, starting fresh")
		return nil
	}
	p.entries = entries
	return nil
}

func (p *FilePopulation) saveManifest() error {
	data, err := rezi.Enc(p.entries)
	if err != nil {
		return fmt.Errorf("population: encoding manifest: %w", err)
	}
	// write to a temp file and rename into place so a crash mid-write can
	// never leave a half-written manifest behind.
	tmp, err := os.CreateTemp(p.Dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("population: creating manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("population: writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, p.manifestPath())
}

func (p *FilePopulation) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) == 0
}

func (p *FilePopulation) AddIndividual(root *tree.Node, path string) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	data, err := p.Codec.Encode(root)
	if err != nil {
		return fmt.Errorf("population: encoding individual: %w", err)
	}

	fileName := id.String() + ".tree"
	if path != "" {
		fileName = filepath.Base(path) + "-" + fileName
	}
	fullPath := filepath.Join(p.Dir, fileName)
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("population: writing individual: %w", err)
	}

	p.mu.Lock()
	p.entries = append(p.entries, manifestEntry{ID: id.String(), FileName: fileName})
	p.cache[fileName] = root
	err = p.saveManifest()
	p.mu.Unlock()
	return err
}

func (p *FilePopulation) SelectIndividual(recipient *tree.Node) (*Individual, error) {
	p.mu.Lock()
	if len(p.entries) == 0 {
		p.mu.Unlock()
		return nil, errEmptyPopulation
	}
	_ = recipient // donor sampling may repeat the recipient, per §4.7
	e := p.entries[p.Rand.Intn(len(p.entries))]
	root, cached := p.cache[e.FileName]
	p.mu.Unlock()

	if cached {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return nil, err
		}
		return &Individual{ID: id, Root: root}, nil
	}

	data, err := os.ReadFile(filepath.Join(p.Dir, e.FileName))
	if err != nil {
		return nil, fmt.Errorf("population: reading individual %s: %w", e.FileName, err)
	}
	root, err = p.Codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("population: decoding individual %s: %w", e.FileName, err)
	}

	id, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[e.FileName] = root
	p.mu.Unlock()

	return &Individual{ID: id, Root: root}, nil
}
