package domain

import "time"

type Role string

const (
	RoleAudience  Role = "audience"
	RoleModerator Role = "moderator"
)

// ValidRole reports whether s names a grantable roster role. Host is not a
// roster role; it is tracked on the room itself.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAudience, RoleModerator:
		return true
	}
	return false
}

// Participant is one user's membership in one room. A user has at most one
// active (LeftAt unset) record per room.
type Participant struct {
	RoomID      RoomID     `json:"roomId"`
	UserID      UserID     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LeftAt      *time.Time `json:"leftAt,omitempty"`
}

func NewParticipant(roomID RoomID, userID UserID, displayName string) *Participant {
	return &Participant{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		Role:        RoleAudience,
		JoinedAt:    time.Now().UTC(),
	}
}

func (p *Participant) Active() bool { return p.LeftAt == nil }
