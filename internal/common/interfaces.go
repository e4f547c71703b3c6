package common

import "context"

// Profile is the read-only view of a user exposed to the messaging core.
// Documents store ids only; expansion to a Profile happens at the read
// boundary via the identity directory.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"fullName"`
	AvatarRef   string `json:"profilePic"`
	Enrollment  string `json:"enrollment"`
}

// IdentityDirectory resolves user ids to display profiles.
type IdentityDirectory interface {
	GetUser(ctx context.Context, id string) (*Profile, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*Profile, error)
}

// TokenValidator checks an opaque identity token and returns the user id.
// This interface decouples the transport layers from the user service.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

// Broadcaster delivers an event payload to every session currently
// subscribed to a room. Fire-and-forget: sessions that are offline at
// broadcast time miss the event and re-fetch on reconnect.
type Broadcaster interface {
	Broadcast(roomID, event string, payload interface{})
}
