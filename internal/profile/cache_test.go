package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ail-project/ail-feeder-discord/internal/schema"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetOrFetchFetchesOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	cache := NewCache(discardLogger(), FetcherFunc(func(ctx context.Context, userID string) (Profile, error) {
		calls++
		return Profile{Bio: "threat hunter", Avatar: []byte{0x89}}, nil
	}))

	user := schema.User{ID: "u1", Username: "alice"}
	first := cache.GetOrFetch(context.Background(), user)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "threat hunter", first.Bio)
	assert.Equal(t, []byte{0x89}, first.Avatar)

	second := cache.GetOrFetch(context.Background(), user)
	assert.Equal(t, 1, calls, "second lookup must not fetch")
	assert.Equal(t, first, second)
}

func TestGetOrFetchCachesFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	cache := NewCache(discardLogger(), FetcherFunc(func(ctx context.Context, userID string) (Profile, error) {
		calls++
		return Profile{}, errors.New("backend down")
	}))

	user := schema.User{ID: "u1"}
	first := cache.GetOrFetch(context.Background(), user)
	assert.Empty(t, first.Bio)
	assert.Empty(t, first.Avatar)

	cache.GetOrFetch(context.Background(), user)
	assert.Equal(t, 1, calls, "failed fetches are cached, never retried")
}

func TestGetOrFetchNotFoundIsSilent(t *testing.T) {
	t.Parallel()

	cache := NewCache(discardLogger(), FetcherFunc(func(ctx context.Context, userID string) (Profile, error) {
		return Profile{}, ErrNotFound
	}))

	user := cache.GetOrFetch(context.Background(), schema.User{ID: "gone", Username: "ghost"})
	assert.Equal(t, "ghost", user.Username)
	assert.Empty(t, user.Bio)
	assert.Equal(t, 1, cache.Len())
}

func TestGetOrFetchDistinctUsers(t *testing.T) {
	t.Parallel()

	calls := 0
	cache := NewCache(discardLogger(), FetcherFunc(func(ctx context.Context, userID string) (Profile, error) {
		calls++
		return Profile{Bio: userID}, nil
	}))

	a := cache.GetOrFetch(context.Background(), schema.User{ID: "u1"})
	b := cache.GetOrFetch(context.Background(), schema.User{ID: "u2"})
	assert.Equal(t, 2, calls)
	assert.Equal(t, "u1", a.Bio)
	assert.Equal(t, "u2", b.Bio)
	assert.Equal(t, 2, cache.Len())
}
