package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

const eventBuffer = 256

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	CommandTimeout time.Duration // per-command deadline inside an actor
	DrainGrace     time.Duration // idle period after close before retirement
	Audit          core.AuditSink
}

// Engine is the facade the request layer talks to: it locates the room actor
// and submits commands, synchronously from the caller's point of view.
type Engine struct {
	store  core.Store
	reg    *Registry
	events chan domain.StateChangeEvent
	audit  *auditWriter

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(store core.Store, opts Options) *Engine {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if opts.DrainGrace <= 0 {
		opts.DrainGrace = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:  store,
		events: make(chan domain.StateChangeEvent, eventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	e.reg = NewRegistry(store, func(state *core.RoomState) *RoomActor {
		return newRoomActor(ctx, state, store, e.events,
			opts.CommandTimeout, opts.DrainGrace, func(id domain.RoomID) { e.reg.Remove(id) })
	})
	if opts.Audit != nil {
		e.audit = newAuditWriter(opts.Audit)
		go e.audit.run(ctx, e.events)
	}
	return e
}

type CreateRoomParams struct {
	Title       string
	Description string
	Type        domain.RoomType
	Capacity    int
	HostID      domain.UserID
}

// CreateRoom allocates the room in the store, starts its actor and announces
// it as the room's first event.
func (e *Engine) CreateRoom(ctx context.Context, p CreateRoomParams) (core.Snapshot, error) {
	if p.Title == "" || p.HostID == "" {
		return core.Snapshot{}, fmt.Errorf("title and host are required: %w", core.ErrInvalidArgument)
	}
	if len(p.Title) > domain.MaxTitleLen {
		return core.Snapshot{}, fmt.Errorf("title too long: %w", core.ErrInvalidArgument)
	}
	if p.Type != domain.RoomTypeAudio && p.Type != domain.RoomTypeVideo {
		return core.Snapshot{}, fmt.Errorf("room type must be audio or video: %w", core.ErrInvalidArgument)
	}
	if p.Capacity == 0 {
		p.Capacity = domain.DefaultCapacity
	}
	if p.Capacity < domain.MinCapacity || p.Capacity > domain.MaxCapacity {
		return core.Snapshot{}, fmt.Errorf("capacity must be within [%d,%d]: %w",
			domain.MinCapacity, domain.MaxCapacity, core.ErrInvalidArgument)
	}

	room := domain.NewRoom(p.Title, p.Description, p.Type, p.Capacity, p.HostID)
	if err := e.store.CreateRoom(ctx, room); err != nil {
		return core.Snapshot{}, fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("module", "app.engine").Str("room", string(room.ID)).
		Str("host", string(p.HostID)).Int("capacity", p.Capacity).Msg("room created")

	actor, err := e.reg.GetOrCreate(ctx, room.ID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return actor.Submit(ctx, Command{Kind: domain.CmdCreateRoom, ActorID: p.HostID})
}

// Submit routes one command to its room's serialized queue and waits for the
// resulting snapshot.
func (e *Engine) Submit(ctx context.Context, roomID domain.RoomID, cmd Command) (core.Snapshot, error) {
	if roomID == "" {
		return core.Snapshot{}, fmt.Errorf("missing room id: %w", core.ErrInvalidArgument)
	}
	if cmd.Kind == domain.CmdCreateRoom {
		// Creation events are minted by CreateRoom only.
		return core.Snapshot{}, fmt.Errorf("%s is not a submittable command: %w", cmd.Kind, core.ErrInvalidArgument)
	}
	actor, err := e.reg.GetOrCreate(ctx, roomID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return actor.Submit(ctx, cmd)
}

// Snapshot serves a consistent read through the room's queue.
func (e *Engine) Snapshot(ctx context.Context, roomID domain.RoomID) (core.Snapshot, error) {
	actor, err := e.reg.GetOrCreate(ctx, roomID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return actor.Query(ctx)
}

// ListRooms is a read-only store passthrough; it does not wake actors.
func (e *Engine) ListRooms(ctx context.Context, f core.RoomFilter) ([]domain.Room, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Page < 0 {
		f.Page = 0
	}
	return e.store.ListRooms(ctx, f)
}

// Subscribe attaches a live event channel to the room. Events arrive in
// sequence order; the channel closes when the subscriber falls behind or the
// actor retires.
func (e *Engine) Subscribe(ctx context.Context, roomID domain.RoomID) (<-chan domain.StateChangeEvent, func(), error) {
	actor, err := e.reg.GetOrCreate(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := actor.Subscribe()
	return ch, cancel, nil
}

// Shutdown stops all actors and waits for the audit writer to drain.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.reg.StopAll()
	e.cancel()
	if e.audit == nil {
		return nil
	}
	select {
	case <-e.audit.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
