package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/collabimport/internal/core"
)

// OperatorHeader names the operator starting an import.
const OperatorHeader = "X-Operator"

// operatorFromRequest identifies the operator by X-Operator, falling back
// to the client IP resolved by TrustedRealIP.
func operatorFromRequest(r *http.Request) string {
	if op := strings.TrimSpace(r.Header.Get(OperatorHeader)); op != "" {
		if len(op) > 128 {
			op = op[:128]
		}
		return op
	}
	return r.RemoteAddr
}

// withRequestMetadata adds operator, IP and User-Agent for audit logging.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithOperator(ctx, operatorFromRequest(r))
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
