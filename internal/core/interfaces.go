package core

import (
	"context"

	"liveroom/internal/domain"
)

// Snapshot is a read-only view of one room handed outside the engine.
type Snapshot struct {
	Room         *domain.Room         `json:"room"`
	Participants []domain.Participant `json:"participants"`
}

// RoomFilter narrows ListRooms. Zero value lists everything, first page.
type RoomFilter struct {
	Status domain.RoomStatus
	Page   int
	Limit  int
}

// Store is the system of record behind the engine. Actor state is a working
// copy reconciled from here on creation and flushed on each committed
// command.
type Store interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	LoadRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	SaveRoom(ctx context.Context, room *domain.Room) error
	ListRooms(ctx context.Context, f RoomFilter) ([]domain.Room, int, error)

	FindParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error)
	ListParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error)
	UpsertParticipant(ctx context.Context, p *domain.Participant) error
	DeleteParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
}

// AuditSink persists committed events. Delivery is at-least-once; the sink
// de-duplicates on (roomID, seq).
type AuditSink interface {
	Append(ctx context.Context, ev domain.StateChangeEvent) error
}
