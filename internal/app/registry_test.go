package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveroom/internal/adapters/store"
	"liveroom/internal/core"
	"liveroom/internal/domain"
)

func newTestRegistry(t *testing.T, mem *store.Memory) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var reg *Registry
	reg = NewRegistry(mem, func(state *core.RoomState) *RoomActor {
		return newRoomActor(ctx, state, mem, nil, time.Second, time.Minute,
			func(id domain.RoomID) { reg.Remove(id) })
	})
	return reg
}

func seedRoom(t *testing.T, mem *store.Memory) domain.RoomID {
	t.Helper()
	room := domain.NewRoom("seeded", "", domain.RoomTypeAudio, 4, hostID)
	require.NoError(t, mem.CreateRoom(context.Background(), room))
	return room.ID
}

func TestGetOrCreateRequiresStoredRoom(t *testing.T) {
	reg := newTestRegistry(t, store.NewMemory())
	_, err := reg.GetOrCreate(context.Background(), domain.RoomID("missing"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGetOrCreateIsIdempotentUnderRace(t *testing.T) {
	mem := store.NewMemory()
	reg := newTestRegistry(t, mem)
	roomID := seedRoom(t, mem)

	const callers = 16
	actors := make([]*RoomActor, callers)
	var wg conc.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Go(func() {
			actor, err := reg.GetOrCreate(context.Background(), roomID)
			assert.NoError(t, err)
			actors[i] = actor
		})
	}
	wg.Wait()

	for _, actor := range actors[1:] {
		assert.Same(t, actors[0], actor)
	}
}

func TestRemoveForcesStoreRecheck(t *testing.T) {
	mem := store.NewMemory()
	reg := newTestRegistry(t, mem)
	roomID := seedRoom(t, mem)

	first, err := reg.GetOrCreate(context.Background(), roomID)
	require.NoError(t, err)

	reg.Remove(roomID)
	_, alive := reg.Get(roomID)
	assert.False(t, alive)

	// The room still exists in the store, so a fresh actor starts.
	second, err := reg.GetOrCreate(context.Background(), roomID)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestShardsDoNotBlockEachOther(t *testing.T) {
	mem := store.NewMemory()
	reg := newTestRegistry(t, mem)

	ids := make([]domain.RoomID, 64)
	for i := range ids {
		ids[i] = seedRoom(t, mem)
	}

	var wg sync.WaitGroup
	start := time.Now()
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.GetOrCreate(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 2*time.Second)

	for _, id := range ids {
		_, alive := reg.Get(id)
		assert.True(t, alive)
	}
}
