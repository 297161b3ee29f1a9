package auth

import "context"

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

var allowed = Decision{Allowed: true}

func Denied(reason string) Decision {
	return Decision{Reason: reason}
}

// Authorize checks whether the context's identity holds the required role.
// Every role-gated operation goes through this single guard rather than
// re-reading ambient state.
func Authorize(ctx context.Context, role string) Decision {
	id, ok := FromContext(ctx)
	if !ok {
		return Denied("not authenticated")
	}
	if id.Role != role {
		return Denied("role " + id.Role + " lacks access")
	}
	return allowed
}
