package auth

import "context"

// Operator roles. Role checks treat ADMIN and SUDO as supersets of every
// other role.
const (
	RoleAdmin      = "ADMIN"
	RoleSudo       = "SUDO"
	RoleReception  = "RECEPTION"
	RolePhlebotomy = "PHLEBOTOMY"
	RoleLab        = "LAB"
	RoleDoctor     = "DOCTOR"
)

// Actor is the authenticated operator on whose behalf a mutation runs.
// Every lifecycle transition requires one.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsZero reports whether no authenticated actor is present.
func (a Actor) IsZero() bool {
	return a.Username == ""
}

// HasRole reports whether the actor holds one of the given roles. ADMIN
// and SUDO pass every check.
func (a Actor) HasRole(roles ...string) bool {
	if a.Role == RoleAdmin || a.Role == RoleSudo {
		return true
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext retrieves the authenticated actor from the context.
// The zero Actor is returned when none is present.
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey).(Actor)
	return a
}
