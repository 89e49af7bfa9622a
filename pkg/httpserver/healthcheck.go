package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Probe is a named dependency check.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler serves liveness when no probes are given and readiness
// otherwise. Each probe runs with timeout; any failure answers 503.
func HealthHandler(log *slog.Logger, timeout time.Duration, probes ...Probe) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "alive"}
		code := http.StatusOK

		if len(probes) > 0 {
			resp.Status = "ready"
			resp.Checks = make(map[string]string, len(probes))
			for _, p := range probes {
				ctx, cancel := context.WithTimeout(r.Context(), timeout)
				err := p.Check(ctx)
				cancel()
				if err != nil {
					log.ErrorContext(r.Context(), "readiness check failed",
						slog.String("probe", p.Name), slog.Any("error", err))
					resp.Checks[p.Name] = "fail"
					resp.Status = "not_ready"
					code = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[p.Name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
