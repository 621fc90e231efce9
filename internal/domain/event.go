package domain

import "time"

// CommandKind names a committed room mutation in events and audit rows.
type CommandKind string

const (
	CmdCreateRoom CommandKind = "room_created"
	CmdJoin       CommandKind = "participant_joined"
	CmdLeave      CommandKind = "participant_left"
	CmdAssignSeat CommandKind = "seat_assigned"
	CmdRemoveSeat CommandKind = "seat_removed"
	CmdMute       CommandKind = "seat_muted"
	CmdUnmute     CommandKind = "seat_unmuted"
	CmdKick       CommandKind = "participant_kicked"
	CmdSetRole    CommandKind = "role_changed"
	CmdCloseRoom  CommandKind = "room_closed"
)

// StateChangeEvent records one committed command. Seq is monotonic per room
// starting at 1 with no gaps; subscribers and the audit sink use it to detect
// loss or reordering.
type StateChangeEvent struct {
	RoomID     RoomID      `json:"roomId"`
	Seq        uint64      `json:"seq"`
	Kind       CommandKind `json:"kind"`
	ActorID    UserID      `json:"actorId"`
	AffectedID UserID      `json:"affectedId,omitempty"`
	SeatIndex  int         `json:"seatIndex"`
	Room       *Room       `json:"room"`
	At         time.Time   `json:"at"`
}
