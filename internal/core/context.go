package core

import "context"

type contextKey string

const (
	ctxKeyOperator  contextKey = "import_operator"
	ctxKeyIPAddress contextKey = "audit_ip"
	ctxKeyUserAgent contextKey = "audit_ua"
)

// ContextWithOperator stores the operator identity used for per-operator limits.
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, ctxKeyOperator, operator)
}

// OperatorFromContext extracts the operator identity, or "" if absent.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOperator).(string); ok {
		return v
	}
	return ""
}

// ContextWithIPAddress adds IP address to context for audit logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds User-Agent to context for audit logging.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserAgentFromContext extracts User-Agent from context.
func GetUserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
