package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/command-bridge/pkg/bridge"
	"github.com/morezero/command-bridge/pkg/journal"
)

const httpLogPrefix = "server:http"

// maxRecentLimit caps /commands/recent?limit=.
const maxRecentLimit = 500

// router builds the operator HTTP routes.
func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome())
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/commands/recent", s.handleRecentCommands)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// healthOutput is the /health body.
type healthOutput struct {
	Status    string       `json:"status"`
	Checks    healthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

type healthChecks struct {
	Bridge bool `json:"bridge"`
	// Database is omitted when the journal is disabled.
	Database *bool `json:"database,omitempty"`
}

func (s *Server) health(ctx context.Context) *healthOutput {
	out := &healthOutput{
		Status:    "healthy",
		Checks:    healthChecks{Bridge: s.bridge.Status().Running},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.db != nil {
		ok := true
		if err := s.db.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database ping failed: %v", httpLogPrefix, err))
			ok = false
		}
		out.Checks.Database = &ok
	}
	if !out.Checks.Bridge || (out.Checks.Database != nil && !*out.Checks.Database) {
		out.Status = "unhealthy"
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.health(ctx)
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.bridge.Status().Running {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

// recentOutput is the /commands/recent body.
type recentOutput struct {
	Commands []journal.CommandRecord `json:"commands"`
}

func (s *Server) handleRecentCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "command journal is disabled"})
		return
	}

	limit := journal.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if n > maxRecentLimit {
			n = maxRecentLimit
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	records, err := s.journal.RecentCommands(ctx, r.URL.Query().Get("type"), limit)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - recent commands: %v", httpLogPrefix, err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load recent commands"})
		return
	}
	if records == nil {
		records = []journal.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, recentOutput{Commands: records})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", httpLogPrefix, err))
	}
}

// homePageTemplate is the HTML for the bridge status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Command Bridge</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Command Bridge</h1>
  <p class="meta">Listener state, queue depth and recent commands.</p>

  <section>
    <h2>Listener</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Running: {{if .Status.Running}}<span class="stat">yes</span>{{else}}<span class="error">no</span>{{end}}</p>
    <p>Address: <span class="stat">{{.Status.Host}}:{{.Status.Port}}</span></p>
    <p>Protocol version: {{.Status.ProtocolVersion}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Statistics</h2>
    <p>Open connections: <span class="stat">{{.Status.Connections}}</span></p>
    <p>Pending commands: <span class="stat">{{.Status.Pending}}</span>{{if .Status.MaxPending}} of {{.Status.MaxPending}}{{end}}</p>
  </section>

  <section>
    <h2>Commands</h2>
    {{if not .Status.Commands}}
    <p>No commands registered.</p>
    {{else}}
    <table>
      <thead><tr><th>Type</th></tr></thead>
      <tbody>
        {{range .Status.Commands}}<tr><td>{{.}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  {{if .JournalEnabled}}
  <section>
    <h2>Recent commands</h2>
    {{if .RecentError}}
    <p class="error">Could not load recent commands: {{.RecentError}}</p>
    {{else if not .Recent}}
    <p>No commands recorded.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Completed</th><th>Type</th><th>Status</th><th>Duration (ms)</th><th>Error</th></tr>
      </thead>
      <tbody>
        {{range .Recent}}
        <tr>
          <td>{{.CompletedAt.Format "2006-01-02 15:04:05"}}</td>
          <td>{{.Type}}</td>
          <td>{{.Status}}</td>
          <td>{{printf "%.2f" .DurationMs}}</td>
          <td>{{.Error}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
  {{end}}
</body>
</html>
`

// homeRecentLimit is how many journal rows the home page shows.
const homeRecentLimit = 20

// homeData is the data passed to the home page template.
type homeData struct {
	Health         *healthOutput
	Status         bridge.Status
	JournalEnabled bool
	Recent         []journal.CommandRecord
	RecentError    string
}

// handleHome returns an HTTP handler for the bridge status page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Health:         s.health(ctx),
			Status:         s.bridge.Status(),
			JournalEnabled: s.journal != nil,
		}
		if s.journal != nil {
			recent, err := s.journal.RecentCommands(ctx, "", homeRecentLimit)
			if err != nil {
				data.RecentError = err.Error()
			} else {
				data.Recent = recent
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template: %v", httpLogPrefix, err))
		}
	}
}
