package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UnknownKey is the reserved surrogate key a fact row carries when a
// referenced natural key cannot be resolved against its dimension.
const UnknownKey int64 = 0

// Entity types for surrogate key assignment.
const (
	EntityCustomer = "customer"
	EntityProduct  = "product"
)

// KeyGenerator assigns surrogate keys, monotonic per entity type. Keys are
// append-only: once handed out they are never reused, even if the natural key
// is later retired. Seed it with the highest key found in prior dimension
// state before assigning new ones.
type KeyGenerator struct {
	next map[string]int64
}

func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{next: make(map[string]int64)}
}

// Seed advances the generator for an entity type past maxUsed. Seeding below
// the current watermark has no effect.
func (g *KeyGenerator) Seed(entityType string, maxUsed int64) {
	if maxUsed+1 > g.next[entityType] {
		g.next[entityType] = maxUsed + 1
	}
}

// Next returns the next surrogate key for the entity type, starting at 1.
func (g *KeyGenerator) Next(entityType string) int64 {
	if g.next[entityType] < 1 {
		g.next[entityType] = 1
	}
	k := g.next[entityType]
	g.next[entityType]++
	return k
}

// ComputeRowHash digests the tracked attributes of a dimension entity.
// The result is deterministic across runs and insensitive to map iteration
// order: pairs are sorted by attribute name before hashing. Provenance and
// audit fields must not be included.
func ComputeRowHash(attrs map[string]string) string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(attrs[name])
		sb.WriteByte('\x1f')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// stagingRowHash identifies one staged transaction row for dedup/debugging,
// matching the staging table's row_hash column.
func stagingRowHash(transactionID int64, date time.Time, customerID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d_%s_%s", transactionID, date.Format("2006-01-02"), customerID)))
	return hex.EncodeToString(sum[:])
}

// dateKey derives the dim_date surrogate key from a date value. Deterministic,
// so fact rows can never miss the date dimension.
func dateKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}
