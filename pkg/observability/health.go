package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck reports whether a subsystem is ready; nil means ready.
type ReadyCheck func(ctx context.Context) error

// HealthReport is the body of the health endpoints. Checks maps each named
// readiness check to "ok" or its error text.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler serves liveness at /healthz. The process answering is the check.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeHealth(rw, http.StatusOK, HealthReport{Status: healthStatusOK})
	})
}

// ReadyHandler serves readiness at /readyz. All checks run concurrently; any
// failure turns the response into 503.
func ReadyHandler(checks map[string]ReadyCheck) http.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}

	slices.Sort(names)

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		results := make([]string, len(names))

		var wg sync.WaitGroup

		for i, name := range names {
			wg.Add(1)

			go func() {
				defer wg.Done()

				results[i] = healthStatusOK

				err := checks[name](hr.Context())
				if err != nil {
					results[i] = err.Error()
				}
			}()
		}

		wg.Wait()

		report := HealthReport{Status: healthStatusOK, Checks: make(map[string]string, len(names))}
		status := http.StatusOK

		for i, name := range names {
			report.Checks[name] = results[i]

			if results[i] != healthStatusOK {
				report.Status = healthStatusUnavailable
				status = http.StatusServiceUnavailable
			}
		}

		writeHealth(rw, status, report)
	})
}

func writeHealth(rw http.ResponseWriter, status int, report HealthReport) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	_ = json.NewEncoder(rw).Encode(report)
}
