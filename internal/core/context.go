package core

import "context"

type contextKey string

const (
	ctxKeyOperator  contextKey = "import_operator"
	ctxKeyIPAddress contextKey = "import_ip"
)

// SystemOperator is recorded as imported_by when no operator is known, such
// as for scheduled syncs.
const SystemOperator = "system"

// ContextWithOperator records who triggers imports made with ctx.
func ContextWithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, ctxKeyOperator, operator)
}

// OperatorFromContext returns the operator recorded in ctx, or SystemOperator.
func OperatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOperator).(string); ok && v != "" {
		return v
	}
	return SystemOperator
}

// ContextWithIPAddress adds the client IP address for import logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// GetIPAddressFromContext extracts the client IP address from ctx.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
