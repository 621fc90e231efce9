package app

import (
	"fmt"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

// Command is one mutation submitted to a room actor. Fields beyond Kind and
// ActorID are meaningful per kind only; the actor and room state validate
// them inside the serialized slot.
type Command struct {
	Kind        domain.CommandKind
	ActorID     domain.UserID
	TargetID    domain.UserID
	SeatIndex   int
	DisplayName string
	Role        domain.Role
}

func (c Command) validate() error {
	switch c.Kind {
	case domain.CmdCreateRoom,
		domain.CmdJoin, domain.CmdLeave, domain.CmdAssignSeat, domain.CmdRemoveSeat,
		domain.CmdMute, domain.CmdUnmute, domain.CmdKick, domain.CmdSetRole,
		domain.CmdCloseRoom:
	default:
		return fmt.Errorf("unknown command %q: %w", c.Kind, core.ErrInvalidArgument)
	}
	if c.ActorID == "" {
		return fmt.Errorf("missing actor id: %w", core.ErrInvalidArgument)
	}
	return nil
}

// affected names the user a command acts on, for the emitted event.
func (c Command) affected() domain.UserID {
	switch c.Kind {
	case domain.CmdJoin, domain.CmdLeave:
		return c.ActorID
	case domain.CmdAssignSeat, domain.CmdKick, domain.CmdSetRole:
		return c.TargetID
	}
	return ""
}
