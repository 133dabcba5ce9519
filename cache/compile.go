package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"maps"
	"slices"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/lib"
)

// Key returns the digest identifying a compilation: the host version, the entry
// point and every specifier with its source, in specifier order.
func Key(sources map[string]string, entryPoint string) []byte {
	h := sha256.New()
	write := func(s string) {
		_, _ = h.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(s))))
		_, _ = h.Write([]byte(s))
	}
	write(lib.Version)
	write(entryPoint)
	for _, k := range slices.Sorted(maps.Keys(sources)) {
		write(k)
		write(sources[k])
	}
	return h.Sum(nil)
}

// Compile returns the cached bundle of the sources map, compiling and storing it
// on a miss. The second result reports a cache hit.
func (db *DB) Compile(sources map[string]string, entryPoint string) ([]byte, bool, error) {
	key := Key(sources, entryPoint)
	data, err := db.Get(key)
	switch {
	case err == nil:
		if _, err = bundle.Load(data); err == nil {
			return data, true, nil
		}
		db.opts.Logger.Warn("discarding malformed cached bundle", "entry", entryPoint, "error", err)
	case !errors.Is(err, ErrKeyNotFound):
		return nil, false, err
	}

	data, err = bundle.Compile(sources, entryPoint)
	if err != nil {
		return nil, false, err
	}
	if err = db.Put(key, data); err != nil {
		db.opts.Logger.Warn("failed to store compiled bundle", "entry", entryPoint, "error", err)
	}
	return data, false, nil
}
