package models

// ParticipantRole tags what a participant may do from a remote
type ParticipantRole string

const (
	ParticipantRoleAdmin    ParticipantRole = "admin"
	ParticipantRoleStandard ParticipantRole = "standard"
	ParticipantRoleJunior   ParticipantRole = "junior"
)

// ParseParticipantRole maps stored role strings onto a role. The legacy
// values "user" and "kid" are still found in older rosters.
func ParseParticipantRole(s string) ParticipantRole {
	switch s {
	case "admin":
		return ParticipantRoleAdmin
	case "junior", "kid":
		return ParticipantRoleJunior
	default:
		return ParticipantRoleStandard
	}
}

// Participant is one entry in the static roster
type Participant struct {
	ID          string          `json:"id" yaml:"id"`
	DisplayName string          `json:"name" yaml:"name"`
	Role        ParticipantRole `json:"role" yaml:"role"`
	ColorTag    string          `json:"color" yaml:"color"`
}

// Initials returns the first two letters of the display name
func (p Participant) Initials() string {
	r := []rune(p.DisplayName)
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}
