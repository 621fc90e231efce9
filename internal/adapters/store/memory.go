package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

type participantKey struct {
	room domain.RoomID
	user domain.UserID
}

// Memory is a map-backed Store, AuditSink and UserStore for tests and local
// runs. It mirrors the Postgres adapter's semantics, including the audit
// de-dupe on (room, seq).
type Memory struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*domain.Room
	participants map[participantKey]*domain.Participant
	audit        map[domain.RoomID]map[uint64]domain.StateChangeEvent
	users        map[domain.UserID]*domain.User
	usersByEmail map[string]domain.UserID
}

func NewMemory() *Memory {
	return &Memory{
		rooms:        make(map[domain.RoomID]*domain.Room),
		participants: make(map[participantKey]*domain.Participant),
		audit:        make(map[domain.RoomID]map[uint64]domain.StateChangeEvent),
		users:        make(map[domain.UserID]*domain.User),
		usersByEmail: make(map[string]domain.UserID),
	}
}

func (m *Memory) CreateRoom(_ context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return fmt.Errorf("room %s exists: %w", room.ID, core.ErrConflict)
	}
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *Memory) LoadRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, core.ErrNotFound)
	}
	return room.Clone(), nil
}

func (m *Memory) SaveRoom(_ context.Context, room *domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return fmt.Errorf("room %s: %w", room.ID, core.ErrNotFound)
	}
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *Memory) ListRooms(_ context.Context, f core.RoomFilter) ([]domain.Room, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		all = append(all, *r.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := f.Page * f.Limit
	if f.Limit <= 0 || start >= total {
		return []domain.Room{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *Memory) FindParticipant(_ context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[participantKey{roomID, userID}]
	if !ok {
		return nil, fmt.Errorf("participant %s in room %s: %w", userID, roomID, core.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListParticipants(_ context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for k, p := range m.participants {
		if k.room == roomID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *Memory) UpsertParticipant(_ context.Context, p *domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.participants[participantKey{p.RoomID, p.UserID}] = &cp
	return nil
}

func (m *Memory) DeleteParticipant(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.participants, participantKey{roomID, userID})
	return nil
}

// Append stores one audit event, ignoring duplicates by (room, seq).
func (m *Memory) Append(_ context.Context, ev domain.StateChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byRoom, ok := m.audit[ev.RoomID]
	if !ok {
		byRoom = make(map[uint64]domain.StateChangeEvent)
		m.audit[ev.RoomID] = byRoom
	}
	if _, dup := byRoom[ev.Seq]; dup {
		return nil
	}
	byRoom[ev.Seq] = ev
	return nil
}

// AuditTrail returns a room's recorded events ordered by sequence.
func (m *Memory) AuditTrail(roomID domain.RoomID) []domain.StateChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byRoom := m.audit[roomID]
	out := make([]domain.StateChangeEvent, 0, len(byRoom))
	for _, ev := range byRoom {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (m *Memory) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByEmail[u.Email]; ok {
		return fmt.Errorf("email %s taken: %w", u.Email, core.ErrConflict)
	}
	cp := *u
	m.users[u.ID] = &cp
	m.usersByEmail[u.Email] = u.ID
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *Memory) FindUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}
