package authz

import "context"

// UserPrincipal is an authenticated human caller.
type UserPrincipal struct {
	ID    int64
	Email string
	Admin bool
}

// ApplicationPrincipal is an authenticated machine caller.
type ApplicationPrincipal struct {
	ID      int64
	GroupID int64
	Name    string
}

type userContextKey struct{}
type applicationContextKey struct{}

// ContextWithUser attaches the authenticated user to the context.
func ContextWithUser(ctx context.Context, user UserPrincipal) context.Context {
	return context.WithValue(ctx, userContextKey{}, &user)
}

// UserFromContext extracts the authenticated user from the context.
func UserFromContext(ctx context.Context) (UserPrincipal, bool) {
	if ctx == nil {
		return UserPrincipal{}, false
	}
	v, ok := ctx.Value(userContextKey{}).(*UserPrincipal)
	if !ok || v == nil {
		return UserPrincipal{}, false
	}
	return *v, true
}

// ContextWithApplication attaches the authenticated application to the context.
func ContextWithApplication(ctx context.Context, app ApplicationPrincipal) context.Context {
	return context.WithValue(ctx, applicationContextKey{}, &app)
}

// ApplicationFromContext extracts the authenticated application from the context.
func ApplicationFromContext(ctx context.Context) (ApplicationPrincipal, bool) {
	if ctx == nil {
		return ApplicationPrincipal{}, false
	}
	v, ok := ctx.Value(applicationContextKey{}).(*ApplicationPrincipal)
	if !ok || v == nil {
		return ApplicationPrincipal{}, false
	}
	return *v, true
}
