package core

import (
	"fmt"
	"sort"
	"time"

	"liveroom/internal/domain"
)

// RoomState is one room's seat table, roster and metadata. It is purely
// sequential: the owning actor is the only caller, so there is no locking
// here. Every method validates everything before mutating anything, which
// gives all-or-nothing semantics per command.
type RoomState struct {
	room   *domain.Room
	roster map[domain.UserID]*domain.Participant
}

// NewRoomState reconciles a working copy from store rows. Inactive
// participants are history, not roster.
func NewRoomState(room *domain.Room, participants []domain.Participant) *RoomState {
	s := &RoomState{
		room:   room,
		roster: make(map[domain.UserID]*domain.Participant, len(participants)),
	}
	for i := range participants {
		p := participants[i]
		if p.Active() {
			s.roster[p.UserID] = &p
		}
	}
	return s
}

func (s *RoomState) Room() *domain.Room { return s.room }

// canManageSeats implements the host-or-moderator precondition. The host
// needs no roster record for this; moderator is a roster role.
func (s *RoomState) canManageSeats(actor domain.UserID) bool {
	if actor == s.room.HostID {
		return true
	}
	p, ok := s.roster[actor]
	return ok && p.Role == domain.RoleModerator
}

func (s *RoomState) seatInRange(index int) bool {
	return index >= 0 && index < len(s.room.Seats)
}

func (s *RoomState) mutable() error {
	if !s.room.Open() {
		return fmt.Errorf("room %s is closed: %w", s.room.ID, ErrConflict)
	}
	return nil
}

// Join adds userID to the roster as audience. Returns a copy of the new
// record for persistence.
func (s *RoomState) Join(userID domain.UserID, displayName string) (*domain.Participant, error) {
	if !s.room.Open() {
		return nil, fmt.Errorf("room %s is closed: %w", s.room.ID, ErrNotFound)
	}
	if _, ok := s.roster[userID]; ok {
		return nil, fmt.Errorf("user %s already joined: %w", userID, ErrConflict)
	}
	p := domain.NewParticipant(s.room.ID, userID, displayName)
	s.roster[userID] = p
	cp := *p
	return &cp, nil
}

// Leave soft-deletes the participant and vacates any seat they hold.
func (s *RoomState) Leave(userID domain.UserID) (*domain.Participant, error) {
	p, ok := s.roster[userID]
	if !ok {
		return nil, fmt.Errorf("user %s is not a participant: %w", userID, ErrNotFound)
	}
	now := time.Now().UTC()
	p.LeftAt = &now
	delete(s.roster, userID)
	s.vacateByOccupant(userID)
	cp := *p
	return &cp, nil
}

func (s *RoomState) AssignSeat(index int, target, actor domain.UserID) error {
	if err := s.Authorize(domain.CmdAssignSeat, actor); err != nil {
		return err
	}
	if !s.seatInRange(index) {
		return fmt.Errorf("seat index %d out of range: %w", index, ErrInvalidArgument)
	}
	if err := s.mutable(); err != nil {
		return err
	}
	if _, ok := s.roster[target]; !ok {
		return fmt.Errorf("target %s is not a participant: %w", target, ErrNotFound)
	}
	seat := &s.room.Seats[index]
	if seat.Occupied {
		return fmt.Errorf("seat %d already occupied: %w", index, ErrConflict)
	}
	for i := range s.room.Seats {
		if s.room.Seats[i].Occupied && s.room.Seats[i].OccupantID == target {
			return fmt.Errorf("user %s already holds seat %d: %w", target, i, ErrConflict)
		}
	}
	seat.Occupied = true
	seat.OccupantID = target
	seat.Muted = false
	return nil
}

// RemoveSeat vacates a seat. Vacating an already-empty seat is a no-op; the
// returned bool reports whether anything changed.
func (s *RoomState) RemoveSeat(index int, actor domain.UserID) (bool, error) {
	if err := s.Authorize(domain.CmdRemoveSeat, actor); err != nil {
		return false, err
	}
	if !s.seatInRange(index) {
		return false, fmt.Errorf("seat index %d out of range: %w", index, ErrInvalidArgument)
	}
	if err := s.mutable(); err != nil {
		return false, err
	}
	seat := &s.room.Seats[index]
	if !seat.Occupied {
		return false, nil
	}
	s.vacate(seat)
	return true, nil
}

func (s *RoomState) SetMuted(index int, muted bool, actor domain.UserID) error {
	kind := domain.CmdMute
	if !muted {
		kind = domain.CmdUnmute
	}
	if err := s.Authorize(kind, actor); err != nil {
		return err
	}
	if !s.seatInRange(index) {
		return fmt.Errorf("seat index %d out of range: %w", index, ErrInvalidArgument)
	}
	if err := s.mutable(); err != nil {
		return err
	}
	seat := &s.room.Seats[index]
	if !seat.Occupied {
		return fmt.Errorf("seat %d is not occupied: %w", index, ErrConflict)
	}
	seat.Muted = muted
	return nil
}

// Kick vacates the seat and hard-removes the target's roster record, unlike
// Leave which only marks them gone. Rejoining afterwards is allowed.
func (s *RoomState) Kick(index int, target, actor domain.UserID) error {
	if err := s.Authorize(domain.CmdKick, actor); err != nil {
		return err
	}
	if !s.seatInRange(index) {
		return fmt.Errorf("seat index %d out of range: %w", index, ErrInvalidArgument)
	}
	if err := s.mutable(); err != nil {
		return err
	}
	if _, ok := s.roster[target]; !ok {
		return fmt.Errorf("target %s is not a participant: %w", target, ErrNotFound)
	}
	seat := &s.room.Seats[index]
	if !seat.Occupied || seat.OccupantID != target {
		return fmt.Errorf("user %s does not hold seat %d: %w", target, index, ErrConflict)
	}
	s.vacate(seat)
	delete(s.roster, target)
	return nil
}

// SetRole grants or revokes moderator. Host only; moderators cannot change
// roles.
func (s *RoomState) SetRole(target domain.UserID, role domain.Role, actor domain.UserID) (*domain.Participant, error) {
	if err := s.Authorize(domain.CmdSetRole, actor); err != nil {
		return nil, err
	}
	if !domain.ValidRole(string(role)) {
		return nil, fmt.Errorf("unknown role %q: %w", role, ErrInvalidArgument)
	}
	if err := s.mutable(); err != nil {
		return nil, err
	}
	p, ok := s.roster[target]
	if !ok {
		return nil, fmt.Errorf("target %s is not a participant: %w", target, ErrNotFound)
	}
	p.Role = role
	cp := *p
	return &cp, nil
}

// Close ends the room: seats vacated, roster marked left, status closed.
// Returns the participants that were marked left, for persistence.
func (s *RoomState) Close(actor domain.UserID) ([]domain.Participant, error) {
	if err := s.Authorize(domain.CmdCloseRoom, actor); err != nil {
		return nil, err
	}
	if !s.room.Open() {
		return nil, fmt.Errorf("room %s already closed: %w", s.room.ID, ErrConflict)
	}
	now := time.Now().UTC()
	s.room.Status = domain.RoomClosed
	s.room.ClosedAt = &now
	for i := range s.room.Seats {
		s.vacate(&s.room.Seats[i])
	}
	left := make([]domain.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		t := now
		p.LeftAt = &t
		left = append(left, *p)
	}
	s.roster = make(map[domain.UserID]*domain.Participant)
	return left, nil
}

func (s *RoomState) vacate(seat *domain.Seat) {
	seat.Occupied = false
	seat.OccupantID = ""
	seat.Muted = false
}

func (s *RoomState) vacateByOccupant(userID domain.UserID) {
	for i := range s.room.Seats {
		if s.room.Seats[i].Occupied && s.room.Seats[i].OccupantID == userID {
			s.vacate(&s.room.Seats[i])
		}
	}
}

// Snapshot returns a deep copy of the room plus the active roster, ordered by
// join time for stable output.
func (s *RoomState) Snapshot() Snapshot {
	parts := make([]domain.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		parts = append(parts, *p)
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].JoinedAt.Equal(parts[j].JoinedAt) {
			return parts[i].UserID < parts[j].UserID
		}
		return parts[i].JoinedAt.Before(parts[j].JoinedAt)
	})
	return Snapshot{Room: s.room.Clone(), Participants: parts}
}

// CheckInvariants verifies the structural guarantees of the seat table and
// roster. A non-nil error here is a programming fault, not a user error; the
// actor reacts by resynchronizing from the store.
func (s *RoomState) CheckInvariants() error {
	byOccupant := make(map[domain.UserID]int, len(s.room.Seats))
	for i := range s.room.Seats {
		seat := &s.room.Seats[i]
		if seat.Index != i {
			return fmt.Errorf("seat %d carries index %d", i, seat.Index)
		}
		if !seat.Occupied {
			if seat.OccupantID != "" || seat.Muted {
				return fmt.Errorf("vacant seat %d retains occupant state", i)
			}
			continue
		}
		if seat.OccupantID == "" {
			return fmt.Errorf("occupied seat %d has no occupant", i)
		}
		if prev, ok := byOccupant[seat.OccupantID]; ok {
			return fmt.Errorf("user %s occupies seats %d and %d", seat.OccupantID, prev, i)
		}
		byOccupant[seat.OccupantID] = i
		if _, ok := s.roster[seat.OccupantID]; !ok {
			return fmt.Errorf("seat %d occupant %s is not an active participant", i, seat.OccupantID)
		}
	}
	if !s.room.Open() && len(s.roster) > 0 {
		return fmt.Errorf("closed room %s retains an active roster", s.room.ID)
	}
	return nil
}
