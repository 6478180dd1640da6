package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/pagefold/pagefold/pkg/compose"
	"github.com/pagefold/pagefold/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string
	recompute time.Duration

	backend   string
	redisAddr string
	mongoURI  string
	mongoDB   string
}

// serveCommand creates the serve command: host a layout session over
// HTTP. Renderers POST measured heights; consumers GET the committed
// plan.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: ":8632", recompute: time.Second}

	cmd := &cobra.Command{
		Use:   "serve <document.toml>",
		Short: "Serve a layout session over HTTP",
		Long: `Serve a layout session over HTTP.

Endpoints:
  GET  /healthz       liveness probe
  GET  /plan          the committed layout plan (404 until one exists)
  GET  /proxies       entries awaiting a first measurement
  GET  /assignments   per-instance slot assignments of the committed plan
  POST /measurements  batch of {key, height, measured_at} reports;
                      a null or non-positive height deletes the key

Measurements coalesce in the session's dispatcher; a background loop
recomputes and commits whenever the session is dirty and the
measurement-first gate is open.

Persistence backends:
  file   per-user state directory (default)
  redis  shared store for multi-instance deployments (--redis-addr)
  mongo  durable plan archive (--mongo-uri, --mongo-db)
  none   persistence disabled`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			return c.runServe(ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().DurationVar(&opts.recompute, "recompute-interval", opts.recompute, "how often to recompute when dirty")
	cmd.Flags().StringVar(&opts.backend, "store", "file", "persistence backend: file, redis, mongo, none")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis address for --store=redis")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "mongodb://localhost:27017", "mongo connection string for --store=mongo")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", "pagefold", "mongo database for --store=mongo")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, docPath string, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	doc, err := loadDocument(docPath)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	}

	st, err := serveStore(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	sess := compose.NewSession(compose.Config{
		DocumentID:         doc.ID,
		Geometry:           doc.Geometry,
		RequestedPageCount: doc.RequestedPages,
		Logger:             logger,
		Persistence:        st,
	})
	defer sess.Close()

	if err := sess.LoadPersisted(ctx); err != nil {
		logger.Warn("stored measurements unavailable", "err", err)
	}
	sess.SetComponents(doc.Instances)
	sess.SetTemplate(doc.Template)
	sess.SetDataSources(doc.Sources)
	for _, rec := range doc.Seed {
		sess.RecordMeasurement(rec.Key, rec.Height, rec.MeasuredAt)
	}
	sess.FlushMeasurements()

	// Background recompute/commit loop. One cycle in flight at a time;
	// Recalculate is a no-op unless the session is dirty and the gate
	// is open.
	go func() {
		ticker := time.NewTicker(opts.recompute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, ok := sess.Recalculate(); ok {
					if _, err := sess.Commit(ctx); err != nil {
						logger.Warn("archiving plan failed", "err", err)
					}
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newRouter(sess),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving layout session", "document", doc.ID, "addr", opts.addr, "store", opts.backend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// serveStore resolves the persistence backend chosen on the command
// line.
func serveStore(ctx context.Context, opts serveOpts) (store.Store, error) {
	switch opts.backend {
	case "file", "":
		return newStore(false)
	case "redis":
		return store.NewRedisStore(ctx, store.RedisConfig{Addr: opts.redisAddr, Prefix: appName + ":"})
	case "mongo":
		return store.NewMongoStore(ctx, store.MongoConfig{URI: opts.mongoURI, Database: opts.mongoDB})
	case "none":
		return store.NewNullStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q (want file, redis, mongo, or none)", opts.backend)
}

// =============================================================================
// Router
// =============================================================================

// measurementPayload is the POST /measurements wire format. A nil or
// non-positive height deletes the key.
type measurementPayload struct {
	Key        string    `json:"key"`
	Height     *float64  `json:"height"`
	MeasuredAt time.Time `json:"measured_at"`
}

// newRouter builds the HTTP surface over a layout session.
func newRouter(sess *compose.Session) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/plan", func(w http.ResponseWriter, _ *http.Request) {
		p := sess.Committed()
		if p == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no committed plan yet"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	r.Get("/proxies", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"measurement_complete": sess.MeasurementComplete(),
			"proxies":              sess.ProxyEntries(),
		})
	})

	r.Get("/assignments", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sess.Assignments())
	})

	r.Post("/measurements", func(w http.ResponseWriter, req *http.Request) {
		var batch []measurementPayload
		if err := json.NewDecoder(req.Body).Decode(&batch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		for _, m := range batch {
			if m.Key == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "measurement without key"})
				return
			}
			at := m.MeasuredAt
			if at.IsZero() {
				at = time.Now()
			}
			if m.Height == nil || *m.Height <= 0 {
				sess.DetachMeasurement(m.Key)
				continue
			}
			sess.RecordMeasurement(m.Key, *m.Height, at)
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(batch)})
	})

	return r
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
