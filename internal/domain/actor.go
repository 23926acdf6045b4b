package domain

// Actor is the member performing an interaction.
type Actor struct {
	UserID            string
	Username          string
	RoleIDs           []string
	CanManageChannels bool
	Bot               bool
}

// SystemActor represents timer and sweeper driven transitions.
var SystemActor = Actor{UserID: "system", Username: "Ticket System"}

// HasRole reports whether the actor holds roleID.
func (a Actor) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range a.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// IsSystem reports whether the actor is the internal system actor.
func (a Actor) IsSystem() bool {
	return a.UserID == SystemActor.UserID
}
