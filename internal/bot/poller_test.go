package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/verbal-diary/internal/telegram"
)

type scriptedSource struct {
	mu      sync.Mutex
	offsets []int64
	batches [][]telegram.Update
	cancel  context.CancelFunc
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) == 0 {
		s.cancel()
		return nil, ctx.Err()
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	if b == nil {
		return nil, errors.New("temporary network error")
	}
	return b, nil
}

func TestPoller_AdvancesOffset(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u1 := textUpdate(1, "one")
	u1.UpdateID = 10
	u2 := textUpdate(2, "two")
	u2.UpdateID = 11
	src := &scriptedSource{
		batches: [][]telegram.Update{{u1}, nil, {u2}},
		cancel:  cancel,
	}

	p := NewPoller(src, f.d, f.d.logger)
	p.backoff = time.Millisecond
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, []int64{0, 11, 11, 12}, src.offsets)
	assert.Equal(t, "one", f.messenger.last(1))
	assert.Equal(t, "two", f.messenger.last(2))
}
