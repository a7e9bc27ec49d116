// Package profile memoizes per-user enrichment lookups (bio, avatar).
package profile

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ail-project/ail-feeder-discord/internal/schema"
)

// ErrNotFound is returned by a Fetcher when the profile is deleted or
// restricted. It is the expected, silent failure mode.
var ErrNotFound = errors.New("profile not found")

// Profile is the enrichment payload for one user.
type Profile struct {
	Bio    string
	Avatar []byte
}

// Fetcher performs the expensive profile lookup.
type Fetcher interface {
	FetchProfile(ctx context.Context, userID string) (Profile, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, userID string) (Profile, error)

func (f FetcherFunc) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	return f(ctx, userID)
}

// Cache memoizes profile fetches by user ID for the process lifetime.
// Failed fetches are cached too, so a user is looked up at most once;
// transient failures are deliberately never retried. The cache grows one
// entry per distinct user and never shrinks.
type Cache struct {
	logger  *slog.Logger
	fetcher Fetcher

	mu      sync.Mutex
	entries map[string]Profile
}

func NewCache(log *slog.Logger, fetcher Fetcher) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		logger:  log.With(slog.String("component", "profile")),
		fetcher: fetcher,
		entries: make(map[string]Profile),
	}
}

// GetOrFetch returns user with Bio and Avatar populated best-effort. The
// first call for an ID fetches; later calls reuse the cached result even
// when the fetch failed. Enrichment absence is silent for not-found
// profiles and logged for unexpected errors, but never an error to the
// caller.
func (c *Cache) GetOrFetch(ctx context.Context, user schema.User) schema.User {
	c.mu.Lock()
	cached, ok := c.entries[user.ID]
	c.mu.Unlock()

	if !ok {
		cached = c.fetch(ctx, user.ID)
		c.mu.Lock()
		// A concurrent fetch for the same ID may have won; keep the
		// first entry so repeated calls stay stable.
		if first, ok := c.entries[user.ID]; ok {
			cached = first
		} else {
			c.entries[user.ID] = cached
		}
		c.mu.Unlock()
	}

	user.Bio = cached.Bio
	user.Avatar = cached.Avatar
	return user
}

func (c *Cache) fetch(ctx context.Context, userID string) Profile {
	if c.fetcher == nil {
		return Profile{}
	}
	p, err := c.fetcher.FetchProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("profile fetch failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return Profile{}
	}
	return p
}

// Len reports how many users have been looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
