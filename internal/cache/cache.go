// Package cache stores synthesized audio on disk, compressed with zstd, so
// repeated readings of the same text skip synthesis entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

// Cache is a disk-backed audio cache keyed by content hash. Safe for use
// from multiple goroutines: zstd coders are stateless in the EncodeAll/
// DecodeAll mode and file operations are independent.
type Cache struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New opens a cache rooted at dir, creating it if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Cache{dir: dir, encoder: enc, decoder: dec}, nil
}

// Key derives the cache key for a synthesis request. Voice and rate are
// part of the key: the same text spoken differently is different audio.
func Key(text, voice string, rate float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%.3f", text, voice, rate)
	return hex.EncodeToString(h.Sum(nil))
}

// Load returns the cached audio for a key, or false on a miss. Corrupt
// entries are removed and reported as misses.
func (c *Cache) Load(key string) ([]byte, bool) {
	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		log.Warn("dropping corrupt cache entry", "key", key, "error", err)
		_ = os.Remove(c.path(key))
		return nil, false
	}
	return data, true
}

// Store writes audio for a key, compressing it first.
func (c *Cache) Store(key string, data []byte) error {
	compressed := c.encoder.EncodeAll(data, nil)
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp, c.path(key))
}

// Purge removes the oldest entries until the cache fits within maxBytes.
// Returns the number of entries removed.
func (c *Cache) Purge(maxBytes int64) int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	type fileInfo struct {
		path string
		size int64
		mod  int64
	}
	var files []fileInfo
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || e.IsDir() {
			continue
		}
		files = append(files, fileInfo{
			path: filepath.Join(c.dir, e.Name()),
			size: info.Size(),
			mod:  info.ModTime().UnixNano(),
		})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })

	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if err := os.Remove(f.path); err == nil {
			total -= f.size
			removed++
		}
	}
	return removed
}

// Close releases the compression coders.
func (c *Cache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".zst")
}
