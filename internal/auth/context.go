package auth

import "context"

type contextKey string

const (
	contextKeyOrg       contextKey = "auth.org_id"
	contextKeyRole      contextKey = "auth.role"
	contextKeySubject   contextKey = "auth.subject"
	contextKeyLocations contextKey = "auth.location_ids"
)

// Identity is the acting principal's tenant scope. Pipeline internals trust
// it and never re-derive identity themselves.
type Identity struct {
	OrgID   string
	Role    Role
	Subject string
	// LocationIDs is the explicit location grant. Empty means every location
	// of the org.
	LocationIDs []string
}

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	ctx = context.WithValue(ctx, contextKeyOrg, identity.OrgID)
	ctx = context.WithValue(ctx, contextKeyRole, identity.Role)
	ctx = context.WithValue(ctx, contextKeySubject, identity.Subject)
	ctx = context.WithValue(ctx, contextKeyLocations, identity.LocationIDs)
	return ctx
}

// OrgIDFromContext extracts the tenant id from context.
func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if orgID, ok := ctx.Value(contextKeyOrg).(string); ok {
		return orgID
	}
	return ""
}

// RoleFromContext extracts the role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SubjectFromContext extracts the subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}

// LocationIDsFromContext extracts the explicit location grant from context.
func LocationIDsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if ids, ok := ctx.Value(contextKeyLocations).([]string); ok {
		return ids
	}
	return nil
}
