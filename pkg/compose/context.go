package compose

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// identityCacheSize bounds the measurement-key identity cache. One
// document rarely produces more than a few hundred live keys; evicted
// entries just re-parse.
const identityCacheSize = 4096

// Context owns the per-session working state that is not part of the
// committed plan: the entry-identity cache and the debug counters. Each
// Session owns exactly one Context, so independent layout sessions
// never share state and tests construct fresh ones.
type Context struct {
	// identity caches measurement key → instance id lookups.
	identity *lru.Cache[string, string]

	// Debug counters, monotonically increasing over the session's life.
	Recomputes int
	Commits    int
	Flushes    int
	Suppressed int
}

// NewContext creates a fresh layout context.
func NewContext() *Context {
	c, err := lru.New[string, string](identityCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Context{identity: c}
}

// InstanceOf resolves the instance id behind a measurement key.
// Keys are structured ("blk:<id>", "lst:<id>:<kind>:..."), so the
// resolution is a parse; the cache keeps repeated flush processing off
// the string splitting path. Unparseable keys resolve to "".
func (c *Context) InstanceOf(key string) string {
	if id, ok := c.identity.Get(key); ok {
		return id
	}
	id := parseInstanceID(key)
	c.identity.Add(key, id)
	return id
}

// parseInstanceID extracts the instance id from a measurement key.
func parseInstanceID(key string) string {
	rest, ok := strings.CutPrefix(key, "blk:")
	if ok {
		return rest
	}
	rest, ok = strings.CutPrefix(key, "lst:")
	if !ok {
		return ""
	}
	// lst:<instance>:<kind>:<start>:<count>:<total>; the id itself
	// contains no colons (uuids or slugs), so the first segment wins.
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return rest[:i]
	}
	return ""
}
