package binary

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/FocuswithJustin/ceparser/core/cache"
	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
)

// FileName returns the dictionary resource name for game, e.g. "eu4bin.csv".
func FileName(game string) string {
	return strings.ToLower(game) + "bin.csv"
}

// Registry loads per-game dictionaries from a file system, once per game.
type Registry struct {
	fsys  fs.FS
	cache *cache.LRU[string, *Dictionary]
}

// NewRegistry creates a registry reading <game>bin.csv files from fsys.
func NewRegistry(fsys fs.FS) *Registry {
	return &Registry{
		fsys:  fsys,
		cache: cache.NewLRU[string, *Dictionary](cache.DefaultConfig()),
	}
}

// NewDirRegistry creates a registry over a directory on disk.
func NewDirRegistry(dir string) *Registry {
	if dir == "" {
		dir = "."
	}
	return NewRegistry(os.DirFS(dir))
}

// Load returns the dictionary for game, reading and parsing it on first use.
func (r *Registry) Load(game string) (*Dictionary, error) {
	key := strings.ToLower(game)
	return r.cache.GetOrLoad(key, func() (*Dictionary, error) {
		name := FileName(key)
		data, err := fs.ReadFile(r.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cperrors.NewNotFound("dictionary", name)
		}
		if err != nil {
			return nil, cperrors.NewIO("read", name, err)
		}
		return ParseDictionaryBytes(name, data)
	})
}

// Register installs a prepared dictionary for game, replacing any loaded one.
func (r *Registry) Register(game string, d *Dictionary) {
	r.cache.Put(strings.ToLower(game), d)
}

// Stats exposes the underlying cache statistics.
func (r *Registry) Stats() cache.Stats {
	return r.cache.Stats()
}
