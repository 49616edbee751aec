// Package agentcache holds built agents keyed by their build fingerprint.
// Entries never expire on a timer; the only removal path is an explicit
// per-user invalidation after a credential change.
package agentcache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// errSuperseded signals that an invalidation landed while a build was in
// flight. The result is discarded and the caller rebuilds against the new
// credential state.
var errSuperseded = errors.New("agentcache: build superseded by invalidation")

// Fingerprint identifies one distinct agent build. Two requests with equal
// fingerprints must observe the same built agent object.
type Fingerprint struct {
	AgentType   string
	UserID      string
	Temperature *float64
	MaxTokens   *int
}

// Key returns the canonical cache key. Unset parameters are encoded
// distinctly from zero values so (nil) and (0) never collide.
func (f Fingerprint) Key() string {
	var b strings.Builder
	b.WriteString(f.AgentType)
	b.WriteByte('|')
	b.WriteString(f.UserID)
	b.WriteByte('|')
	if f.Temperature != nil {
		b.WriteString(strconv.FormatFloat(*f.Temperature, 'g', -1, 64))
	} else {
		b.WriteString("-")
	}
	b.WriteByte('|')
	if f.MaxTokens != nil {
		b.WriteString(strconv.Itoa(*f.MaxTokens))
	} else {
		b.WriteString("-")
	}
	return b.String()
}

type entry struct {
	fp    Fingerprint
	agent any
}

// Cache is a process-local agent cache with build deduplication: concurrent
// misses on the same fingerprint share a single build instead of each
// triggering one (duplicate builds would duplicate toolkit side effects).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	// gens counts invalidations per user. A build only lands in the cache
	// if the user's generation is unchanged since the build started.
	gens     map[string]uint64
	inflight map[string]string // key → userID of builds currently running
	group    singleflight.Group
}

func New() *Cache {
	return &Cache{
		entries:  make(map[string]entry),
		gens:     make(map[string]uint64),
		inflight: make(map[string]string),
	}
}

// BuildFunc constructs the agent for one fingerprint.
type BuildFunc func(ctx context.Context) (any, error)

// GetOrBuild returns the cached agent for fp, building it at most once per
// fingerprint across concurrent callers. A failed build caches nothing.
// A build overtaken by Invalidate is discarded and repeated, so no caller
// ever receives an agent built against pre-invalidation credentials.
func (c *Cache) GetOrBuild(ctx context.Context, fp Fingerprint, build BuildFunc) (any, error) {
	key := fp.Key()

	for {
		c.mu.RLock()
		e, ok := c.entries[key]
		gen := c.gens[fp.UserID]
		c.mu.RUnlock()
		if ok {
			return e.agent, nil
		}

		agent, err, _ := c.group.Do(key, func() (any, error) {
			// Re-check under the group: a concurrent caller may have
			// populated the entry between our miss and this call.
			c.mu.Lock()
			if e, ok := c.entries[key]; ok {
				c.mu.Unlock()
				return e.agent, nil
			}
			c.inflight[key] = fp.UserID
			c.mu.Unlock()
			defer func() {
				c.mu.Lock()
				delete(c.inflight, key)
				c.mu.Unlock()
			}()

			built, err := build(ctx)
			if err != nil {
				return nil, err
			}

			c.mu.Lock()
			if c.gens[fp.UserID] != gen {
				c.mu.Unlock()
				return nil, errSuperseded
			}
			c.entries[key] = entry{fp: fp, agent: built}
			c.mu.Unlock()

			log.Debug().
				Str("agent_type", fp.AgentType).
				Str("user_id", fp.UserID).
				Msg("cached built agent")
			return built, nil
		})
		if errors.Is(err, errSuperseded) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return agent, nil
	}
}

// Get returns the cached agent for fp without building.
func (c *Cache) Get(fp Fingerprint) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp.Key()]
	if !ok {
		return nil, false
	}
	return e.agent, true
}

// Invalidate removes every entry whose fingerprint belongs to userID,
// across all parameter variants. A credential change must reach every
// future build for that user, whatever temperature or token limit the
// next request carries.
func (c *Cache) Invalidate(userID string) int {
	c.mu.Lock()
	c.gens[userID]++

	removed := 0
	for key, e := range c.entries {
		if e.fp.UserID == userID {
			delete(c.entries, key)
			removed++
		}
	}
	var forget []string
	for key, uid := range c.inflight {
		if uid == userID {
			forget = append(forget, key)
		}
	}
	c.mu.Unlock()

	// Detach in-flight builds for this user from the group so callers
	// arriving from now on start a fresh build instead of joining one
	// keyed to the old credentials.
	for _, key := range forget {
		c.group.Forget(key)
	}

	if removed > 0 || len(forget) > 0 {
		log.Info().
			Str("user_id", userID).
			Int("entries", removed).
			Int("in_flight", len(forget)).
			Msg("invalidated cached agents")
	}
	return removed
}

// Len returns the number of cached agents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
