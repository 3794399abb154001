// Package server orchestrates all components: COMMS client, DB, cache, document service, router, HTTP health.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/valuestore/internal/config"
	"github.com/morezero/valuestore/pkg/cache"
	"github.com/morezero/valuestore/pkg/catalog"
	"github.com/morezero/valuestore/pkg/commsutil"
	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/documents"
	"github.com/morezero/valuestore/pkg/events"
	"github.com/morezero/valuestore/pkg/library"
	"github.com/morezero/valuestore/pkg/router"
)

const logPrefix = "server:server"

// Server is the valuestore orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	cache      *cache.RedisCache
	httpServer *http.Server
	svc        router.DocumentService
}

// SetupLogging installs the default slog text handler at the given level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// NewLibrary builds the handler library: configured envelope fields plus the
// catalog manifest.
func NewLibrary(cfg *config.Config) (*library.Library, error) {
	fields, err := cfg.EnvelopeFields()
	if err != nil {
		return nil, err
	}
	manifest, err := catalog.LoadManifest(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load catalog manifest: %w", logPrefix, err)
	}
	lib := library.New(library.WithFields(fields))
	if err := lib.ApplyManifest(manifest); err != nil {
		return nil, fmt.Errorf("%s - failed to apply catalog manifest %s: %w", logPrefix, manifest.Name, err)
	}
	slog.Info(fmt.Sprintf("%s - Catalog %s@%s loaded, %d types", logPrefix, manifest.Name, manifest.Version, lib.Catalog().Len()))
	return lib, nil
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel)

	slog.Info(fmt.Sprintf("%s - Starting valuestore", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}
	defer s.close()

	// Step 1: Type catalog and handler library
	lib, err := NewLibrary(cfg)
	if err != nil {
		return err
	}

	subject := cfg.ValueStoreSubject
	if subject == "" {
		subject = commsutil.SubjectValueStore
	}
	slog.Info(fmt.Sprintf("%s - ValueStore subject: %s", logPrefix, subject))

	// Step 2: Connect to COMMS
	nc, err := commsutil.Connect(commsutil.ConnectParams{URL: cfg.COMMSURL, Name: cfg.COMMSName})
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	s.nc = nc

	// Step 3: Connect to database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	// Step 3b: Run migrations if enabled
	if cfg.RunMigrations {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}

	// Step 4: Optional cache
	var docCache cache.DocumentCache = cache.NoOpCache{}
	if cfg.RedisAddr != "" {
		rc, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, cache.WithTTL(cfg.CacheTTL))
		if err != nil {
			return fmt.Errorf("%s - failed to connect to cache: %w", logPrefix, err)
		}
		s.cache = rc
		docCache = rc
		slog.Info(fmt.Sprintf("%s - Document cache at %s (ttl %s)", logPrefix, cfg.RedisAddr, cfg.CacheTTL))
	}

	// Step 5: Document service
	publisher := events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalChangeSubject: cfg.ChangeEventSubject})
	s.svc = documents.NewService(documents.NewServiceParams{
		Store:     db.NewRepository(pool),
		Cache:     docCache,
		Publisher: publisher,
		Library:   lib,
		Config:    documents.DefaultConfig(),
	})

	// Step 6: Router subscription
	sub, err := s.subscribe(ctx, subject, router.NewRouter(s.svc))
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	// Step 7: HTTP health server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.newMux(), ReadHeaderTimeout: cfg.HealthCheckTimeout}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - valuestore is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}
	return nil
}

// close releases whatever Run managed to open.
func (s *Server) close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
}

// subscribe serves router requests on subject.
func (s *Server) subscribe(ctx context.Context, subject string, rt *router.Router) (*comms.Subscription, error) {
	sub, err := s.nc.Subscribe(subject, func(msg *comms.Msg) {
		if err := msg.Respond(s.handleMessage(ctx, rt, msg.Data)); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", logPrefix, err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))
	return sub, nil
}

// handleMessage decodes one request, dispatches it under a per-request
// timeout and returns the encoded response.
func (s *Server) handleMessage(ctx context.Context, rt *router.Router, data []byte) []byte {
	var req router.Request
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		out, _ := commsutil.EncodePayload(&router.Response{
			Ok: false,
			Error: &router.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "Failed to decode request",
			},
		})
		return out
	}

	reqCtx, cancel := context.WithTimeout(ctx, router.Deadline(&req, time.Now(), s.cfg.RequestTimeout))
	defer cancel()

	resp := rt.Dispatch(reqCtx, &req)
	out, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		out, _ = commsutil.EncodePayload(&router.Response{
			ID:    req.ID,
			Error: &router.ErrorDetail{Code: documents.CodeInternal, Message: "Failed to encode response", Retryable: true},
		})
	}
	return out
}

func (s *Server) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/types", s.handleTypes())
	return mux
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.svc.Health(ctx)
		status := http.StatusOK
		if h.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// handleTypes lists the catalog, or one type with ?name=.
func (s *Server) handleTypes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		out, err := s.svc.DescribeType(r.Context(), &documents.DescribeTypeInput{Type: r.URL.Query().Get("name")})
		if err != nil {
			status := http.StatusInternalServerError
			if svcErr, ok := err.(*documents.ServiceError); ok && svcErr.Code == documents.CodeUnknownType {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", logPrefix, err))
	}
}

// homePageTemplate is the HTML for the home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Value Store</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-degraded { color: #cc7a00; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Value Store</h1>
  <p class="meta">Service health and type catalog.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Database: {{if .Health.Checks.Database}}OK{{else}}<span class="error">Failed</span>{{end}}</p>
    <p>Cache: {{if .Health.Checks.Cache}}OK{{else}}<span class="error">Failed</span>{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Types</h2>
    {{if .TypesError}}
    <p class="error">Could not load the catalog: {{.TypesError}}</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Type</th><th>Kind</th><th>Supertypes</th><th>Subtypes</th><th>Handler</th></tr>
      </thead>
      <tbody>
        {{range .Types}}
        <tr>
          <td>{{.Name}}</td>
          <td>{{.Kind}}</td>
          <td>{{range .Supertypes}}{{.}} {{end}}</td>
          <td>{{range .Subtypes}}{{.}} {{end}}</td>
          <td>{{if .HasHandler}}yes{{else}}no{{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health     *documents.HealthOutput
	Types      []documents.TypeInfo
	TypesError string
}

// handleHome returns an HTTP handler for the home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{Health: s.svc.Health(ctx)}
		types, err := s.svc.DescribeType(ctx, &documents.DescribeTypeInput{})
		if err != nil {
			data.TypesError = err.Error()
		} else {
			data.Types = types.Types
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
