// Package marker persists the retention marker: the time of the last cleanup
// pass on this device, as a decimal millisecond timestamp under a single
// metadata key. It is never synchronised across devices.
package marker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

type Store struct {
	repo metadata.Repository
	key  string
}

func NewStore(repo metadata.Repository) *Store {
	return &Store{repo: repo, key: common.RetentionMarkerKey}
}

// LastCleanup returns the marker. A missing or unparsable value reports
// ok=false so that the next pass runs.
func (s *Store) LastCleanup(ctx context.Context) (at time.Time, ok bool, err error) {
	raw, found, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read retention marker: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}

	ms, perr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if perr != nil || ms <= 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *Store) SetLastCleanup(ctx context.Context, at time.Time) error {
	if err := s.repo.Set(ctx, s.key, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("write retention marker: %w", err)
	}
	return nil
}
