package auth

import "context"

// PermittedLocationIDs intersects the requested location ids with the
// caller's grant. An empty grant means every location of the org, so the
// request passes through untouched. Returns ErrLocationForbidden when a
// requested id falls outside the grant.
func PermittedLocationIDs(ctx context.Context, requested []string) ([]string, error) {
	granted := LocationIDsFromContext(ctx)
	if len(granted) == 0 {
		return requested, nil
	}
	grantSet := make(map[string]struct{}, len(granted))
	for _, id := range granted {
		grantSet[id] = struct{}{}
	}
	if len(requested) == 0 {
		out := make([]string, len(granted))
		copy(out, granted)
		return out, nil
	}
	out := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := grantSet[id]; !ok {
			return nil, ErrLocationForbidden
		}
		out = append(out, id)
	}
	return out, nil
}

// EnsureLocationAllowed verifies a single location id against the caller's
// grant.
func EnsureLocationAllowed(ctx context.Context, locationID string) error {
	granted := LocationIDsFromContext(ctx)
	if len(granted) == 0 {
		return nil
	}
	for _, id := range granted {
		if id == locationID {
			return nil
		}
	}
	return ErrLocationForbidden
}
