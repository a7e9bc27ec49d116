package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ail-project/ail-feeder-discord/internal/profile"
)

const (
	avatarSize    = "256"
	avatarTimeout = 10 * time.Second
	maxAvatarSize = 10 << 20
)

// ProfileFetcher enriches users over the REST API. The API exposes the
// avatar to any caller; the bio stays empty unless the platform returns
// it for the account kind in use.
type ProfileFetcher struct {
	session Session
	client  *http.Client
}

func NewProfileFetcher(session Session) *ProfileFetcher {
	return &ProfileFetcher{
		session: session,
		client:  &http.Client{Timeout: avatarTimeout},
	}
}

// FetchProfile looks the user up and downloads its avatar. A deleted or
// restricted user maps to profile.ErrNotFound so the cache stays silent
// about it.
func (f *ProfileFetcher) FetchProfile(ctx context.Context, userID string) (profile.Profile, error) {
	user, err := f.session.User(userID)
	if err != nil {
		if isStatus(err, http.StatusNotFound) || isStatus(err, http.StatusForbidden) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}

	p := profile.Profile{}
	if user.Avatar == "" {
		return p, nil
	}

	avatar, err := f.download(ctx, user.AvatarURL(avatarSize))
	if err != nil {
		return p, fmt.Errorf("fetch avatar for %s: %w", userID, err)
	}
	p.Avatar = avatar
	return p, nil
}

func (f *ProfileFetcher) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize))
}
