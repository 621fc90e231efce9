package core

import (
	"fmt"

	"liveroom/internal/domain"
)

// roleRequirement is the authorization precondition a command declares.
// New commands add a table row instead of re-deriving the check.
type roleRequirement int

const (
	reqNone roleRequirement = iota
	reqSeatManager                // host or moderator
	reqHost
)

var commandRequirement = map[domain.CommandKind]roleRequirement{
	domain.CmdCreateRoom: reqNone,
	domain.CmdJoin:       reqNone,
	domain.CmdLeave:      reqNone,
	domain.CmdAssignSeat: reqSeatManager,
	domain.CmdRemoveSeat: reqSeatManager,
	domain.CmdMute:       reqSeatManager,
	domain.CmdUnmute:     reqSeatManager,
	domain.CmdKick:       reqSeatManager,
	domain.CmdSetRole:    reqHost,
	domain.CmdCloseRoom:  reqHost,
}

// Authorize evaluates the declared precondition for kind against the current
// roster and host. It is always called inside the room's serialized slot, so
// a demotion committed just before is visible here.
func (s *RoomState) Authorize(kind domain.CommandKind, actor domain.UserID) error {
	switch commandRequirement[kind] {
	case reqHost:
		if actor != s.room.HostID {
			return fmt.Errorf("user %s is not the host: %w", actor, ErrForbidden)
		}
	case reqSeatManager:
		if !s.canManageSeats(actor) {
			return fmt.Errorf("user %s may not manage seats: %w", actor, ErrForbidden)
		}
	}
	return nil
}
