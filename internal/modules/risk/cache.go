package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// cacheKey creates a deterministic hash from a symbol set and lookback
// window. Symbols are sorted so the key is order-independent.
func cacheKey(symbols []string, lookbackDays int) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	keyData := fmt.Sprintf("%s|%d", strings.Join(sorted, ","), lookbackDays)
	h := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(h[:16])
}

// MatrixEntry is one cached correlation matrix with its computation time.
type MatrixEntry struct {
	Matrix     *CorrelationMatrix `msgpack:"matrix"`
	ComputedAt time.Time          `msgpack:"computed_at"`
}

// IsFresh reports whether the entry is younger than maxAge.
func (e *MatrixEntry) IsFresh(maxAge time.Duration) bool {
	return time.Since(e.ComputedAt) < maxAge
}

// MatrixCache holds computed correlation matrices keyed by
// (sorted symbol set, lookback window).
//
// The cache is read-checked-then-recomputed by its caller and carries no
// locking of its own; the CorrelationAnalyzer that owns it serializes all
// access behind its mutex.
type MatrixCache struct {
	entries map[string]*MatrixEntry
}

// NewMatrixCache creates an empty cache.
func NewMatrixCache() *MatrixCache {
	return &MatrixCache{entries: make(map[string]*MatrixEntry)}
}

// Get returns the entry for a symbol set and lookback, or nil.
func (c *MatrixCache) Get(symbols []string, lookbackDays int) *MatrixEntry {
	return c.entries[cacheKey(symbols, lookbackDays)]
}

// Put stores a matrix, stamping it with the current time.
func (c *MatrixCache) Put(symbols []string, lookbackDays int, matrix *CorrelationMatrix) {
	c.entries[cacheKey(symbols, lookbackDays)] = &MatrixEntry{
		Matrix:     matrix,
		ComputedAt: time.Now(),
	}
}

// Len returns the number of cached entries.
func (c *MatrixCache) Len() int {
	return len(c.entries)
}

// Prune drops every entry older than maxAge and returns how many were removed.
func (c *MatrixCache) Prune(maxAge time.Duration) int {
	removed := 0
	for key, entry := range c.entries {
		if !entry.IsFresh(maxAge) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// SaveTo writes a msgpack snapshot of the cache to path.
func (c *MatrixCache) SaveTo(path string) error {
	data, err := msgpack.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache snapshot: %w", err)
	}
	return nil
}

// LoadFrom restores a msgpack snapshot written by SaveTo. A missing file is
// not an error; the cache simply starts empty.
func (c *MatrixCache) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache snapshot: %w", err)
	}
	entries := make(map[string]*MatrixEntry)
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode cache snapshot: %w", err)
	}
	c.entries = entries
	return nil
}
