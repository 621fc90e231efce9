package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveroom/internal/domain"
)

const (
	host  = domain.UserID("host")
	userA = domain.UserID("user-a")
	userB = domain.UserID("user-b")
	userM = domain.UserID("user-m")
)

func newTestState(t *testing.T, capacity int) *RoomState {
	t.Helper()
	room := domain.NewRoom("test room", "", domain.RoomTypeAudio, capacity, host)
	return NewRoomState(room, nil)
}

func join(t *testing.T, s *RoomState, users ...domain.UserID) {
	t.Helper()
	for _, u := range users {
		_, err := s.Join(u, string(u))
		require.NoError(t, err)
	}
}

func promote(t *testing.T, s *RoomState, u domain.UserID) {
	t.Helper()
	_, err := s.SetRole(u, domain.RoleModerator, host)
	require.NoError(t, err)
}

func TestJoinAndLeave(t *testing.T) {
	s := newTestState(t, 4)

	p, err := s.Join(userA, "Alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAudience, p.Role)
	assert.Nil(t, p.LeftAt)

	_, err = s.Join(userA, "Alice")
	assert.ErrorIs(t, err, ErrConflict)

	left, err := s.Leave(userA)
	require.NoError(t, err)
	assert.NotNil(t, left.LeftAt)

	_, err = s.Leave(userA)
	assert.ErrorIs(t, err, ErrNotFound)

	// Rejoin after leaving is a fresh record.
	_, err = s.Join(userA, "Alice")
	assert.NoError(t, err)
}

func TestLeaveVacatesHeldSeat(t *testing.T) {
	s := newTestState(t, 4)
	join(t, s, userA)
	require.NoError(t, s.AssignSeat(2, userA, host))
	require.NoError(t, s.SetMuted(2, true, host))

	_, err := s.Leave(userA)
	require.NoError(t, err)

	seat := s.Room().Seats[2]
	assert.False(t, seat.Occupied)
	assert.Empty(t, seat.OccupantID)
	assert.False(t, seat.Muted)
	assert.NoError(t, s.CheckInvariants())
}

func TestAssignSeatAuthorization(t *testing.T) {
	s := newTestState(t, 4)
	join(t, s, userA, userB, userM)

	// Audience may not manage seats.
	err := s.AssignSeat(0, userB, userA)
	assert.ErrorIs(t, err, ErrForbidden)

	// The host needs no roster record.
	assert.NoError(t, s.AssignSeat(0, userA, host))

	// Moderator gains the power once granted, loses it when revoked.
	promote(t, s, userM)
	assert.NoError(t, s.AssignSeat(1, userB, userM))

	_, err = s.SetRole(userM, domain.RoleAudience, host)
	require.NoError(t, err)
	err = s.AssignSeat(2, userM, userM)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAssignSeatValidation(t *testing.T) {
	s := newTestState(t, 2)
	join(t, s, userA)

	assert.ErrorIs(t, s.AssignSeat(-1, userA, host), ErrInvalidArgument)
	assert.ErrorIs(t, s.AssignSeat(2, userA, host), ErrInvalidArgument)
	assert.ErrorIs(t, s.AssignSeat(0, userB, host), ErrNotFound)

	require.NoError(t, s.AssignSeat(0, userA, host))

	// Same seat again, and the same occupant on a second seat.
	join(t, s, userB)
	assert.ErrorIs(t, s.AssignSeat(0, userB, host), ErrConflict)
	assert.ErrorIs(t, s.AssignSeat(1, userA, host), ErrConflict)
	assert.NoError(t, s.CheckInvariants())
}

func TestRemoveSeatIsIdempotent(t *testing.T) {
	s := newTestState(t, 2)
	join(t, s, userA)
	require.NoError(t, s.AssignSeat(0, userA, host))

	changed, err := s.RemoveSeat(0, host)
	require.NoError(t, err)
	assert.True(t, changed)

	before := s.Snapshot()
	changed, err = s.RemoveSeat(0, host)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before.Room.Seats, s.Snapshot().Room.Seats)
}

func TestMuteUnmute(t *testing.T) {
	s := newTestState(t, 2)
	join(t, s, userA)

	assert.ErrorIs(t, s.SetMuted(0, true, host), ErrConflict)

	require.NoError(t, s.AssignSeat(0, userA, host))
	require.NoError(t, s.SetMuted(0, true, host))
	assert.True(t, s.Room().Seats[0].Muted)
	require.NoError(t, s.SetMuted(0, false, host))
	assert.False(t, s.Room().Seats[0].Muted)

	assert.ErrorIs(t, s.SetMuted(0, true, userA), ErrForbidden)
}

func TestKickRemovesParticipantRecord(t *testing.T) {
	s := newTestState(t, 2)
	join(t, s, userA)
	require.NoError(t, s.AssignSeat(0, userA, host))

	assert.ErrorIs(t, s.Kick(0, userB, host), ErrNotFound)
	assert.ErrorIs(t, s.Kick(1, userA, host), ErrConflict)

	require.NoError(t, s.Kick(0, userA, host))
	assert.False(t, s.Room().Seats[0].Occupied)
	assert.Empty(t, s.Snapshot().Participants)

	// No ban: kicked users may rejoin immediately.
	_, err := s.Join(userA, "Alice")
	assert.NoError(t, err)
}

func TestSetRoleHostOnly(t *testing.T) {
	s := newTestState(t, 2)
	join(t, s, userA, userM)
	promote(t, s, userM)

	// Moderators cannot change roles.
	_, err := s.SetRole(userA, domain.RoleModerator, userM)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.SetRole(userA, domain.Role("owner"), host)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.SetRole(userB, domain.RoleModerator, host)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseFinality(t *testing.T) {
	s := newTestState(t, 3)
	join(t, s, userA, userB)
	require.NoError(t, s.AssignSeat(0, userA, host))
	require.NoError(t, s.AssignSeat(1, userB, host))

	_, err := s.Close(userA)
	assert.ErrorIs(t, err, ErrForbidden)

	left, err := s.Close(host)
	require.NoError(t, err)
	assert.Len(t, left, 2)
	for _, p := range left {
		assert.NotNil(t, p.LeftAt)
	}
	for _, seat := range s.Room().Seats {
		assert.False(t, seat.Occupied)
	}
	assert.NotNil(t, s.Room().ClosedAt)
	assert.NoError(t, s.CheckInvariants())

	_, err = s.Close(host)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.Join(userA, "Alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.AssignSeat(0, userA, host), ErrConflict)
}

// The walkthrough from the design discussion: two seats, a moderator losing
// the race for seat 0, and a kick that hard-removes the loser of seat 0.
func TestTwoSeatWalkthrough(t *testing.T) {
	s := newTestState(t, 2)

	join(t, s, userA)
	require.NoError(t, s.AssignSeat(0, userA, host))

	join(t, s, userB, userM)
	promote(t, s, userM)

	err := s.AssignSeat(0, userB, userM)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, s.AssignSeat(1, userB, userM))

	require.NoError(t, s.Kick(0, userA, host))
	assert.False(t, s.Room().Seats[0].Occupied)

	snap := s.Snapshot()
	for _, p := range snap.Participants {
		assert.NotEqual(t, userA, p.UserID)
	}
	assert.NoError(t, s.CheckInvariants())
}

func TestCheckInvariantsDetectsCorruption(t *testing.T) {
	s := newTestState(t, 3)
	join(t, s, userA)
	require.NoError(t, s.AssignSeat(0, userA, host))
	require.NoError(t, s.CheckInvariants())

	// Duplicate occupant across two seats.
	s.Room().Seats[1].Occupied = true
	s.Room().Seats[1].OccupantID = userA
	assert.Error(t, s.CheckInvariants())

	s.Room().Seats[1] = domain.Seat{Index: 1}
	require.NoError(t, s.CheckInvariants())

	// Vacant seat retaining occupant state.
	s.Room().Seats[2].Muted = true
	assert.Error(t, s.CheckInvariants())
}

func TestSnapshotIsDetached(t *testing.T) {
	s := newTestState(t, 2)
	join(t, s, userA)
	require.NoError(t, s.AssignSeat(0, userA, host))

	snap := s.Snapshot()
	snap.Room.Seats[0].Occupied = false
	snap.Room.Status = domain.RoomClosed

	assert.True(t, s.Room().Seats[0].Occupied)
	assert.True(t, s.Room().Open())
	assert.NoError(t, s.CheckInvariants())
}
