package timers

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/clubpoker/tablekeeper/internal/store"
)

type firing struct {
	gameID   uint64
	playerID uint64
	purpose  store.TimerPurpose
}

type recorder struct {
	mu      sync.Mutex
	firings []firing
}

func (r *recorder) handle(gameID, playerID uint64, purpose store.TimerPurpose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, firing{gameID, playerID, purpose})
}

func (r *recorder) all() []firing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]firing(nil), r.firings...)
}

func newTestService(t *testing.T) (*Service, *quartz.Mock, *recorder) {
	t.Helper()
	clock := quartz.NewMock(t)
	svc := New(clock, log.New(io.Discard))
	rec := &recorder{}
	svc.Bind(rec.handle)
	return svc, clock, rec
}

func TestScheduleFiresAtDeadline(t *testing.T) {
	svc, clock, rec := newTestService(t)

	svc.Schedule(1, 2, store.PurposeBuyin, clock.Now().Add(time.Minute))
	require.Empty(t, rec.all())

	clock.Advance(time.Minute).MustWait(t.Context())
	require.Equal(t, []firing{{1, 2, store.PurposeBuyin}}, rec.all())
}

func TestCancelPreventsFiring(t *testing.T) {
	svc, clock, rec := newTestService(t)

	svc.Schedule(1, 2, store.PurposeBreak, clock.Now().Add(time.Minute))
	svc.Cancel(1, 2, store.PurposeBreak)

	clock.Advance(2 * time.Minute).MustWait(t.Context())
	require.Empty(t, rec.all())
}

func TestRescheduleReplacesDeadline(t *testing.T) {
	svc, clock, rec := newTestService(t)

	svc.Schedule(1, 2, store.PurposeSeatChange, clock.Now().Add(time.Minute))
	svc.Schedule(1, 2, store.PurposeSeatChange, clock.Now().Add(5*time.Minute))

	clock.Advance(time.Minute).MustWait(t.Context())
	require.Empty(t, rec.all())

	clock.Advance(4 * time.Minute).MustWait(t.Context())
	require.Len(t, rec.all(), 1)
}

func TestSameKeyDifferentPurposesCoexist(t *testing.T) {
	svc, clock, rec := newTestService(t)

	svc.Schedule(1, 2, store.PurposeBuyin, clock.Now().Add(time.Minute))
	svc.Schedule(1, 2, store.PurposeBreak, clock.Now().Add(time.Minute))

	clock.Advance(time.Minute).MustWait(t.Context())
	require.Len(t, rec.all(), 2)
}

func TestStopCancelsEverything(t *testing.T) {
	svc, clock, rec := newTestService(t)

	svc.Schedule(1, 1, store.PurposeBuyin, clock.Now().Add(time.Minute))
	svc.Schedule(2, 2, store.PurposeBreak, clock.Now().Add(time.Minute))
	svc.Stop()

	clock.Advance(time.Hour).MustWait(t.Context())
	require.Empty(t, rec.all())
}
