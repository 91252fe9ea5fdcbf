package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"lmsgate/pkg/requestcontext"
)

// HeaderRequestID is read from inbound requests and echoed on every response.
const HeaderRequestID = "X-Request-ID"

const maxInboundIDLength = 128

// RequestID assigns a correlation ID to the request. A caller-supplied
// X-Request-ID is reused when it is short and printable; otherwise a fresh
// UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if !acceptable(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
