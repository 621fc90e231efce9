package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

const (
	commandBuffer    = 64
	subscriberBuffer = 32
)

// RoomActor owns one room's mutable state. It drains a FIFO command channel
// in a single goroutine, so conflicting commands on the same room are
// serialized without locks while different rooms run fully in parallel.
type RoomActor struct {
	id    domain.RoomID
	state *core.RoomState
	store core.Store

	cmds   chan submission
	events chan<- domain.StateChangeEvent

	cmdTimeout time.Duration
	drainGrace time.Duration
	onRetire   func(domain.RoomID)

	seq   uint64
	dirty bool // state diverged from store; resync before next command

	done chan struct{} // closed once the actor stops accepting work

	subMu sync.Mutex
	subs  map[chan domain.StateChangeEvent]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

type submission struct {
	cmd   Command
	query bool
	reply chan response
}

type response struct {
	snap core.Snapshot
	err  error
}

func newRoomActor(
	parent context.Context,
	state *core.RoomState,
	store core.Store,
	events chan<- domain.StateChangeEvent,
	cmdTimeout, drainGrace time.Duration,
	onRetire func(domain.RoomID),
) *RoomActor {
	ctx, cancel := context.WithCancel(parent)
	return &RoomActor{
		id:         state.Room().ID,
		state:      state,
		store:      store,
		seq:        state.Room().LastSeq,
		cmds:       make(chan submission, commandBuffer),
		events:     events,
		cmdTimeout: cmdTimeout,
		drainGrace: drainGrace,
		onRetire:   onRetire,
		done:       make(chan struct{}),
		subs:       make(map[chan domain.StateChangeEvent]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *RoomActor) start() { go a.run() }

// Submit enqueues one command and waits for its outcome. Arrival order into
// the channel is execution order.
func (a *RoomActor) Submit(ctx context.Context, cmd Command) (core.Snapshot, error) {
	return a.send(ctx, submission{cmd: cmd, reply: make(chan response, 1)})
}

// Query reads a consistent snapshot through the same serialized path, so it
// never observes a half-applied command. Closed rooms still answer queries.
func (a *RoomActor) Query(ctx context.Context) (core.Snapshot, error) {
	return a.send(ctx, submission{query: true, reply: make(chan response, 1)})
}

func (a *RoomActor) send(ctx context.Context, sub submission) (core.Snapshot, error) {
	select {
	case a.cmds <- sub:
	case <-a.done:
		return core.Snapshot{}, fmt.Errorf("room %s has been retired: %w", a.id, core.ErrNotFound)
	case <-ctx.Done():
		return core.Snapshot{}, fmt.Errorf("room %s queue: %w", a.id, core.ErrUnavailable)
	}
	select {
	case r := <-sub.reply:
		return r.snap, r.err
	case <-a.done:
		// The actor is draining; a racing reply may still be buffered.
		select {
		case r := <-sub.reply:
			return r.snap, r.err
		default:
			return core.Snapshot{}, fmt.Errorf("room %s has been retired: %w", a.id, core.ErrNotFound)
		}
	case <-ctx.Done():
		// The command may still apply; the caller just stopped waiting.
		return core.Snapshot{}, fmt.Errorf("room %s reply: %w", a.id, core.ErrUnavailable)
	}
}

func (a *RoomActor) run() {
	logger := log.With().Str("module", "app.actor").Str("room", string(a.id)).Logger()
	logger.Info().Msg("actor started")

	retire := time.NewTimer(a.drainGrace)
	if !retire.Stop() {
		<-retire.C
	}
	armed := false

	defer func() {
		a.cancel()
		close(a.done)
		a.drainQueue()
		a.closeSubscribers()
		logger.Info().Uint64("seq", a.seq).Msg("actor retired")
	}()

	for {
		select {
		case sub := <-a.cmds:
			a.handle(sub)
			if !a.state.Room().Open() && !armed {
				retire.Reset(a.drainGrace)
				armed = true
			}
		case <-retire.C:
			armed = false
			if len(a.cmds) > 0 {
				retire.Reset(a.drainGrace)
				armed = true
				continue
			}
			a.retire()
			return
		case <-a.ctx.Done():
			return
		}
	}
}

// retire removes the actor from the registry first, then stops accepting
// work. Lookups after this re-consult the store.
func (a *RoomActor) retire() {
	if a.onRetire != nil {
		a.onRetire(a.id)
	}
}

func (a *RoomActor) drainQueue() {
	for {
		select {
		case sub := <-a.cmds:
			sub.reply <- response{err: fmt.Errorf("room %s has been retired: %w", a.id, core.ErrNotFound)}
		default:
			return
		}
	}
}

func (a *RoomActor) handle(sub submission) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cmdTimeout)
	defer cancel()

	if a.dirty {
		if err := a.resync(ctx); err != nil {
			sub.reply <- response{err: err}
			return
		}
	}
	if sub.query {
		sub.reply <- response{snap: a.state.Snapshot()}
		return
	}

	cmd := sub.cmd
	if err := cmd.validate(); err != nil {
		sub.reply <- response{err: err}
		return
	}

	upserts, deletes, err := a.apply(cmd)
	if err != nil {
		sub.reply <- response{err: err}
		return
	}

	if err := a.state.CheckInvariants(); err != nil {
		// Programming fault. Refuse the result and rebuild from the store.
		log.Error().Str("module", "app.actor").Str("room", string(a.id)).
			Err(err).Msg("invariant violation, forcing resync")
		a.dirty = true
		sub.reply <- response{err: fmt.Errorf("room %s state invariant violated: %v", a.id, err)}
		return
	}

	// The counter rides on the room row so a later actor, or one on a fresh
	// process, resumes instead of reissuing persisted sequence numbers.
	a.state.Room().LastSeq = a.seq + 1

	if err := a.flush(ctx, upserts, deletes); err != nil {
		// Store and memory now disagree; resync discards the uncommitted
		// mutation so the rejected command leaves no trace.
		a.dirty = true
		sub.reply <- response{err: fmt.Errorf("room %s flush: %v: %w", a.id, err, core.ErrUnavailable)}
		return
	}

	a.seq++
	snap := a.state.Snapshot()
	a.emit(domain.StateChangeEvent{
		RoomID:     a.id,
		Seq:        a.seq,
		Kind:       cmd.Kind,
		ActorID:    cmd.ActorID,
		AffectedID: cmd.affected(),
		SeatIndex:  cmd.SeatIndex,
		Room:       snap.Room,
		At:         time.Now().UTC(),
	})
	sub.reply <- response{snap: snap}
}

// apply dispatches to the state machine and reports which participant rows
// changed, so flush can write exactly those.
func (a *RoomActor) apply(cmd Command) (upserts []domain.Participant, deletes []domain.UserID, err error) {
	switch cmd.Kind {
	case domain.CmdCreateRoom:
		// Room row already exists; this only announces it on the event
		// stream with the first sequence number.
	case domain.CmdJoin:
		var p *domain.Participant
		if p, err = a.state.Join(cmd.ActorID, cmd.DisplayName); err == nil {
			upserts = append(upserts, *p)
		}
	case domain.CmdLeave:
		var p *domain.Participant
		if p, err = a.state.Leave(cmd.ActorID); err == nil {
			upserts = append(upserts, *p)
		}
	case domain.CmdAssignSeat:
		err = a.state.AssignSeat(cmd.SeatIndex, cmd.TargetID, cmd.ActorID)
	case domain.CmdRemoveSeat:
		_, err = a.state.RemoveSeat(cmd.SeatIndex, cmd.ActorID)
	case domain.CmdMute:
		err = a.state.SetMuted(cmd.SeatIndex, true, cmd.ActorID)
	case domain.CmdUnmute:
		err = a.state.SetMuted(cmd.SeatIndex, false, cmd.ActorID)
	case domain.CmdKick:
		if err = a.state.Kick(cmd.SeatIndex, cmd.TargetID, cmd.ActorID); err == nil {
			deletes = append(deletes, cmd.TargetID)
		}
	case domain.CmdSetRole:
		var p *domain.Participant
		if p, err = a.state.SetRole(cmd.TargetID, cmd.Role, cmd.ActorID); err == nil {
			upserts = append(upserts, *p)
		}
	case domain.CmdCloseRoom:
		var left []domain.Participant
		if left, err = a.state.Close(cmd.ActorID); err == nil {
			upserts = append(upserts, left...)
		}
	}
	return upserts, deletes, err
}

func (a *RoomActor) flush(ctx context.Context, upserts []domain.Participant, deletes []domain.UserID) error {
	for i := range upserts {
		if err := a.store.UpsertParticipant(ctx, &upserts[i]); err != nil {
			return fmt.Errorf("upsert participant %s: %w", upserts[i].UserID, err)
		}
	}
	for _, userID := range deletes {
		if err := a.store.DeleteParticipant(ctx, a.id, userID); err != nil {
			return fmt.Errorf("delete participant %s: %w", userID, err)
		}
	}
	if err := a.store.SaveRoom(ctx, a.state.Room()); err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (a *RoomActor) resync(ctx context.Context) error {
	room, err := a.store.LoadRoom(ctx, a.id)
	if err != nil {
		return fmt.Errorf("resync room %s: %v: %w", a.id, err, core.ErrUnavailable)
	}
	parts, err := a.store.ListParticipants(ctx, a.id)
	if err != nil {
		return fmt.Errorf("resync roster %s: %v: %w", a.id, err, core.ErrUnavailable)
	}
	a.state = core.NewRoomState(room, parts)
	a.seq = room.LastSeq
	a.dirty = false
	log.Warn().Str("module", "app.actor").Str("room", string(a.id)).Msg("state resynced from store")
	return nil
}

// emit hands the event to the engine-wide audit stream and fans out to live
// subscribers. Slow subscribers are dropped rather than stalling the room;
// the audit stream tolerates gaps because the sink detects them by sequence.
func (a *RoomActor) emit(ev domain.StateChangeEvent) {
	if a.events != nil {
		select {
		case a.events <- ev:
		default:
			log.Warn().Str("module", "app.actor").Str("room", string(a.id)).
				Uint64("seq", ev.Seq).Msg("audit stream full, event dropped")
		}
	}
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- ev:
		default:
			delete(a.subs, ch)
			close(ch)
			log.Warn().Str("module", "app.actor").Str("room", string(a.id)).
				Msg("slow subscriber dropped")
		}
	}
}

// Subscribe registers a live event channel. The returned cancel is safe to
// call after the actor dropped the subscriber on its own.
func (a *RoomActor) Subscribe() (<-chan domain.StateChangeEvent, func()) {
	ch := make(chan domain.StateChangeEvent, subscriberBuffer)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()
	cancel := func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if _, ok := a.subs[ch]; ok {
			delete(a.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (a *RoomActor) closeSubscribers() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		delete(a.subs, ch)
		close(ch)
	}
}

func (a *RoomActor) stop() { a.cancel() }
