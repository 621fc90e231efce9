package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomID string

type RoomType string

const (
	RoomTypeAudio RoomType = "audio"
	RoomTypeVideo RoomType = "video"
)

type RoomStatus string

const (
	RoomOpen   RoomStatus = "open"
	RoomClosed RoomStatus = "closed"
)

const (
	MinCapacity     = 1
	MaxCapacity     = 16
	DefaultCapacity = 8
)

// Seat is one addressable slot in a room's fixed seat table.
// Index is identity: seat operations address seats by position, never by search.
type Seat struct {
	Index      int    `json:"index"`
	Occupied   bool   `json:"occupied"`
	OccupantID UserID `json:"occupantId,omitempty"`
	Muted      bool   `json:"muted,omitempty"`
}

// Room is the persistent shape of a live room. The seat table and roster are
// mutated only by the room's actor; everyone else sees copies.
type Room struct {
	ID          RoomID     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	HostID      UserID     `json:"hostId"`
	Type        RoomType   `json:"roomType"`
	Status      RoomStatus `json:"status"`
	Capacity    int        `json:"capacity"`
	Seats       []Seat     `json:"seats"`
	LastSeq     uint64     `json:"lastSeq"` // event counter, advances with each committed command
	CreatedAt   time.Time  `json:"createdAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// NewRoom builds an open room with an empty seat table. The caller is expected
// to have validated capacity and room type already.
func NewRoom(title, description string, roomType RoomType, capacity int, hostID UserID) *Room {
	seats := make([]Seat, capacity)
	for i := range seats {
		seats[i].Index = i
	}
	return &Room{
		ID:          RoomID(uuid.NewString()),
		Title:       title,
		Description: description,
		HostID:      hostID,
		Type:        roomType,
		Status:      RoomOpen,
		Capacity:    capacity,
		Seats:       seats,
		CreatedAt:   time.Now().UTC(),
	}
}

func (r *Room) Open() bool { return r.Status == RoomOpen }

// Clone returns a deep copy safe to hand outside the owning actor.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Seats = make([]Seat, len(r.Seats))
	copy(cp.Seats, r.Seats)
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}
