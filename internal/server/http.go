package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/dbi/pkg/dbi"
	"github.com/morezero/dbi/pkg/registry"
)

// healthKey is probed to check the store round trip.
const healthKey = "health:probe"

// HealthOutput is the /health response.
type HealthOutput struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Checks    HealthChecks `json:"checks"`
}

// HealthChecks lists the individual checks of HealthOutput.
type HealthChecks struct {
	Store      bool `json:"store"`
	Clients    int  `json:"clients"`
	References int  `json:"references"`
}

// Health checks the store and reports the client and reference counts.
func Health(ctx context.Context, bot *dbi.DBI) *HealthOutput {
	h := &HealthOutput{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks: HealthChecks{
			Clients:    bot.Clients().Len(),
			References: bot.References().Len(),
		},
	}
	if _, err := bot.Store().Has(ctx, healthKey); err != nil {
		slog.Warn(fmt.Sprintf("%s - store health check failed: %v", logPrefix, err))
		h.Status = "unhealthy"
		return h
	}
	h.Checks.Store = true
	return h
}

// Handler returns the HTTP routes: status page, health, readiness and metrics.
func (s *Server) Handler() http.Handler {
	healthTimeout := s.cfg.HealthCheckTimeout
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		h := Health(healthCtx, s.bot)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", s.bot.Metrics().Handler())
	return mux
}

// homePageTemplate is the HTML for the status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>dbi</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>dbi</h1>
  <p class="meta">Registered interactions, events and locales.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Clients: <span class="stat">{{.Health.Checks.Clients}}</span>, live references: <span class="stat">{{.Health.Checks.References}}</span></p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Interactions</h2>
    {{if not .Interactions}}
    <p>No interactions registered.</p>
    {{else}}
    <table>
      <thead><tr><th>Name</th><th>Kind</th><th>Publish</th><th>Flag</th><th>TTL</th><th>Disabled</th></tr></thead>
      <tbody>
        {{range .Interactions}}
        <tr><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{.Publish}}</td><td>{{.Flag}}</td><td>{{if .TTL}}{{.TTL}}{{end}}</td><td>{{.Disabled}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  <section>
    <h2>Events</h2>
    {{if not .Events}}
    <p>No event handlers registered.</p>
    {{else}}
    <table>
      <thead><tr><th>ID</th><th>Event</th><th>Ordered</th><th>Disabled</th></tr></thead>
      <tbody>
        {{range .Events}}
        <tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.Ordered}}</td><td>{{.Disabled}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  <section>
    <h2>Locales</h2>
    {{if not .Locales}}<p>No locales registered.</p>{{else}}<p>{{range .Locales}}{{.}} {{end}}</p>{{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health       *HealthOutput
	Interactions []*registry.Definition
	Events       []*registry.EventDefinition
	Locales      []string
}

// handleHome returns an HTTP handler for the status page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		reg := s.bot.Registry()
		data := homeData{
			Health:  Health(ctx, s.bot),
			Events:  reg.Events(),
			Locales: reg.Locales().Names(),
		}
		for _, kind := range registry.Kinds {
			data.Interactions = append(data.Interactions, reg.List(kind)...)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
