package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveroom/internal/adapters/store"
	"liveroom/internal/core"
	"liveroom/internal/domain"
)

func TestCreateRoomValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreateRoomParams
	}{
		{"missing title", CreateRoomParams{Type: domain.RoomTypeAudio, HostID: hostID}},
		{"missing host", CreateRoomParams{Title: "t", Type: domain.RoomTypeAudio}},
		{"bad type", CreateRoomParams{Title: "t", Type: domain.RoomType("hologram"), HostID: hostID}},
		{"capacity too small", CreateRoomParams{Title: "t", Type: domain.RoomTypeAudio, Capacity: -1, HostID: hostID}},
		{"capacity too large", CreateRoomParams{Title: "t", Type: domain.RoomTypeAudio, Capacity: 17, HostID: hostID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.CreateRoom(ctx, tc.params)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}
}

func TestCreateRoomDefaults(t *testing.T) {
	env := newTestEnv(t, Options{})
	snap, err := env.engine.CreateRoom(context.Background(), CreateRoomParams{
		Title: "defaults", Type: domain.RoomTypeVideo, HostID: hostID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCapacity, snap.Room.Capacity)
	assert.Len(t, snap.Room.Seats, domain.DefaultCapacity)
	assert.Equal(t, domain.RoomOpen, snap.Room.Status)
	for i, seat := range snap.Room.Seats {
		assert.Equal(t, i, seat.Index)
		assert.False(t, seat.Occupied)
	}
}

func TestSubmitUnknownRoom(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.engine.Submit(context.Background(), domain.RoomID("nope"), Command{
		Kind: domain.CmdJoin, ActorID: hostID, DisplayName: "Host",
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.engine.Submit(context.Background(), "", Command{
		Kind: domain.CmdJoin, ActorID: hostID, DisplayName: "Host",
	})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestListRooms(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	var closedID domain.RoomID
	for i := 0; i < 5; i++ {
		snap, err := env.engine.CreateRoom(ctx, CreateRoomParams{
			Title: "room", Type: domain.RoomTypeAudio, HostID: hostID,
		})
		require.NoError(t, err)
		closedID = snap.Room.ID
	}
	_, err := env.engine.Submit(ctx, closedID, Command{Kind: domain.CmdCloseRoom, ActorID: hostID})
	require.NoError(t, err)

	rooms, total, err := env.engine.ListRooms(ctx, core.RoomFilter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, rooms, 3)

	rooms, total, err = env.engine.ListRooms(ctx, core.RoomFilter{Status: domain.RoomClosed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rooms, 1)
	assert.Equal(t, closedID, rooms[0].ID)

	// A page past the end still reports the true total.
	rooms, total, err = env.engine.ListRooms(ctx, core.RoomFilter{Page: 9, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, rooms)
}

// The creation event is minted by CreateRoom only; the public submit path
// rejects it outright, open or closed room alike.
func TestSubmitRejectsCreationCommand(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	roomID := env.createRoom(t, 2)

	_, err := env.engine.Submit(ctx, roomID, Command{
		Kind: domain.CmdCreateRoom, ActorID: domain.UserID("rando"),
	})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = env.engine.Submit(ctx, roomID, Command{Kind: domain.CmdCloseRoom, ActorID: hostID})
	require.NoError(t, err)
	_, err = env.engine.Submit(ctx, roomID, Command{
		Kind: domain.CmdCreateRoom, ActorID: domain.UserID("rando"),
	})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	// The trail holds exactly the creation and the close, nothing minted by
	// the rejected submissions.
	require.Eventually(t, func() bool {
		return len(env.store.AuditTrail(roomID)) == 2
	}, 2*time.Second, 10*time.Millisecond)
	trail := env.store.AuditTrail(roomID)
	assert.Equal(t, domain.CmdCreateRoom, trail[0].Kind)
	assert.Equal(t, domain.CmdCloseRoom, trail[1].Kind)
}

// A second engine over the same store resumes the room's sequence where the
// first stopped, so committed events keep landing in the audit trail instead
// of colliding with already-persisted sequence numbers.
func TestSequenceResumesAcrossEngines(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	first := NewEngine(mem, Options{Audit: mem})
	snap, err := first.CreateRoom(ctx, CreateRoomParams{
		Title: "persistent", Type: domain.RoomTypeAudio, HostID: hostID,
	})
	require.NoError(t, err)
	roomID := snap.Room.ID
	_, err = first.Submit(ctx, roomID, Command{
		Kind: domain.CmdJoin, ActorID: domain.UserID("alice"), DisplayName: "Alice",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(mem.AuditTrail(roomID)) == 2
	}, 2*time.Second, 10*time.Millisecond)
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, first.Shutdown(shutdownCtx))

	second := NewEngine(mem, Options{Audit: mem})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = second.Shutdown(ctx)
	})
	_, err = second.Submit(ctx, roomID, Command{
		Kind: domain.CmdJoin, ActorID: domain.UserID("bob"), DisplayName: "Bob",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(mem.AuditTrail(roomID)) == 3
	}, 2*time.Second, 10*time.Millisecond)
	trail := mem.AuditTrail(roomID)
	assert.Equal(t, uint64(3), trail[2].Seq)
	assert.Equal(t, domain.UserID("bob"), trail[2].AffectedID)
}

// Full command walkthrough against one engine, checking the audit trail the
// persistence collaborator would replay.
func TestEngineWalkthrough(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	roomID := env.createRoom(t, 2)

	alice, bob := domain.UserID("alice"), domain.UserID("bob")
	env.join(t, roomID, alice, bob)

	_, err := env.engine.Submit(ctx, roomID, Command{
		Kind: domain.CmdSetRole, ActorID: hostID, TargetID: bob, Role: domain.RoleModerator,
	})
	require.NoError(t, err)

	_, err = env.engine.Submit(ctx, roomID, Command{
		Kind: domain.CmdAssignSeat, ActorID: bob, TargetID: alice, SeatIndex: 0,
	})
	require.NoError(t, err)
	_, err = env.engine.Submit(ctx, roomID, Command{
		Kind: domain.CmdMute, ActorID: bob, SeatIndex: 0,
	})
	require.NoError(t, err)
	snap, err := env.engine.Submit(ctx, roomID, Command{
		Kind: domain.CmdKick, ActorID: hostID, TargetID: alice, SeatIndex: 0,
	})
	require.NoError(t, err)

	assert.False(t, snap.Room.Seats[0].Occupied)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, bob, snap.Participants[0].UserID)

	// Kick hard-deletes the roster row.
	_, err = env.store.FindParticipant(ctx, roomID, alice)
	assert.ErrorIs(t, err, core.ErrNotFound)

	wantKinds := []domain.CommandKind{
		domain.CmdCreateRoom, domain.CmdJoin, domain.CmdJoin, domain.CmdSetRole,
		domain.CmdAssignSeat, domain.CmdMute, domain.CmdKick,
	}
	require.Eventually(t, func() bool {
		return len(env.store.AuditTrail(roomID)) == len(wantKinds)
	}, 2*time.Second, 10*time.Millisecond)
	for i, ev := range env.store.AuditTrail(roomID) {
		assert.Equal(t, wantKinds[i], ev.Kind)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestShutdownStopsActors(t *testing.T) {
	mem := newTestEnv(t, Options{})
	roomID := mem.createRoom(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, mem.engine.Shutdown(ctx))

	_, alive := mem.engine.reg.Get(roomID)
	assert.False(t, alive)
}
