package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/construction_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

// Principal is the authenticated caller as handed over by the auth layer.
type Principal struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// SetPrincipalInContext stores id, name and role in one go.
func SetPrincipalInContext(ctx context.Context, p Principal) context.Context {
	ctx = SetUserIdInContext(ctx, p.ID)
	ctx = SetUserNameInContext(ctx, p.Name)
	return SetUserRoleInContext(ctx, p.Role)
}

// GetPrincipalFromContext returns false when no user id has been set.
func GetPrincipalFromContext(ctx context.Context) (Principal, bool) {
	id, ok := GetUserIdFromContext(ctx)
	if !ok {
		return Principal{}, false
	}
	name, _ := GetUserNameFromContext(ctx)
	role, _ := GetUserRoleFromContext(ctx)
	return Principal{ID: id, Name: name, Role: role}, true
}
