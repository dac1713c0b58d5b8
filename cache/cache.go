// Package cache keeps loaded registries keyed by file identity
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/patrickmn/go-cache"
)

// Registries holds validated registries, an entry is reused while the file
// keeps its size and modification time
var Registries = cache.New(8*time.Hour, time.Hour)

type registryEntry struct {
	size    int64
	modTime time.Time
	reg     *model.Registry
}

// Registry returns the validated registry loaded from filePath
func Registry(filePath string) (*model.Registry, error) {
	key, err := filepath.Abs(filePath)
	if err != nil {
		key = filePath
	}
	info, err := os.Stat(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRegistry, err)
	}
	if v, ok := Registries.Get(key); ok {
		if e := v.(registryEntry); e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
			return e.reg, nil
		}
	}
	reg, err := model.LoadFile(key)
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	Registries.Set(key, registryEntry{info.Size(), info.ModTime(), reg}, cache.DefaultExpiration)
	return reg, nil
}
