package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

const registryShards = 32

// Registry maps room ids to live actors. It is sharded so lookups and
// creations for unrelated rooms never contend on one lock, and a store load
// for a new actor happens outside any shard lock.
type Registry struct {
	store    core.Store
	newActor func(state *core.RoomState) *RoomActor
	shards   [registryShards]registryShard
}

type registryShard struct {
	mu     sync.RWMutex
	actors map[domain.RoomID]*RoomActor
}

func NewRegistry(store core.Store, newActor func(state *core.RoomState) *RoomActor) *Registry {
	r := &Registry{store: store, newActor: newActor}
	for i := range r.shards {
		r.shards[i].actors = make(map[domain.RoomID]*RoomActor)
	}
	return r
}

func (r *Registry) shardFor(id domain.RoomID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.shards[h.Sum32()%registryShards]
}

// GetOrCreate returns the live actor for id, starting one from store state if
// needed. The engine never invents rooms: a miss in the store is NotFound.
func (r *Registry) GetOrCreate(ctx context.Context, id domain.RoomID) (*RoomActor, error) {
	sh := r.shardFor(id)

	sh.mu.RLock()
	actor, ok := sh.actors[id]
	sh.mu.RUnlock()
	if ok {
		return actor, nil
	}

	// Load before locking: a slow store must not block the shard.
	room, err := r.store.LoadRoom(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load room %s: %v: %w", id, err, core.ErrUnavailable)
	}
	parts, err := r.store.ListParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load roster %s: %v: %w", id, err, core.ErrUnavailable)
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if actor, ok = sh.actors[id]; ok {
		return actor, nil
	}
	actor = r.newActor(core.NewRoomState(room, parts))
	sh.actors[id] = actor
	actor.start()
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("actor created")
	return actor, nil
}

// Get returns a live actor without touching the store.
func (r *Registry) Get(id domain.RoomID) (*RoomActor, bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	actor, ok := sh.actors[id]
	return actor, ok
}

// Remove forgets a retired actor. The next lookup for id asks the store
// again, so a deleted room fails NotFound instead of serving a stale actor.
func (r *Registry) Remove(id domain.RoomID) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	delete(sh.actors, id)
	sh.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("actor removed")
}

// StopAll cancels every live actor and waits until each has wound down, for
// engine shutdown.
func (r *Registry) StopAll() {
	var wg conc.WaitGroup
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for id, actor := range sh.actors {
			delete(sh.actors, id)
			wg.Go(func() {
				actor.stop()
				<-actor.done
			})
		}
		sh.mu.Unlock()
	}
	wg.Wait()
}
