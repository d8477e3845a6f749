package observability

import (
	"encoding/json"
	"net/http"
	"time"
)

// ConnectionCounter reports the current live connection count. The hub's
// connection registry satisfies this.
type ConnectionCounter interface {
	Len() int
}

// HealthHandler serves process liveness plus the live connection count.
func HealthHandler(start time.Time, conns ConnectionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"status":    "ok",
			"uptime_ms": time.Since(start).Milliseconds(),
		}
		if conns != nil {
			payload["connections"] = conns.Len()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
