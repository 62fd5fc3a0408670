package filter

import (
	"encoding/hex"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/blake2b"
)

// argSchemaCache holds the compiled argument schema of each distinct filter
// signature. Filters that take the same arguments, such as every no-argument
// compressor, share one entry keyed by the schema text digest.
type argSchemaCache struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
	limit   int
}

func newArgSchemaCache(limit int) *argSchemaCache {
	return &argSchemaCache{
		schemas: make(map[string]*jsonschema.Schema),
		limit:   limit,
	}
}

func (c *argSchemaCache) lookup(digest string) (*jsonschema.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[digest]
	return s, ok
}

// store adds a compiled schema. Once limit distinct signatures are held, the
// next one starts a fresh cache; the builtins and any filters registered from
// the config are recompiled on their next Check.
func (c *argSchemaCache) store(digest string, s *jsonschema.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.schemas) >= c.limit {
		c.schemas = make(map[string]*jsonschema.Schema)
	}
	c.schemas[digest] = s
}

func (c *argSchemaCache) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// schemaDigest keys an argument schema by its exact text.
func schemaDigest(schema string) string {
	sum := blake2b.Sum256([]byte(schema))
	return hex.EncodeToString(sum[:])
}
