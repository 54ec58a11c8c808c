package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/pipeline"
	"github.com/sells-group/campus-cli/internal/store"
	"github.com/sells-group/campus-cli/internal/task"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve single-institution extractions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildMux(ctx, env.Tasks, env.Runner, env.Store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type extractRequest struct {
	University string `json:"university"`
	Task       string `json:"task"`
}

type extractResponse struct {
	RunID      string            `json:"run_id,omitempty"`
	Task       string            `json:"task"`
	University string            `json:"university"`
	Status     model.RunStatus   `json:"status"`
	Rows       []model.ResultRow `json:"rows"`
	Attempts   []model.Attempt   `json:"attempts"`
}

// buildMux wires the HTTP routes. Extractions drive one browser at a time,
// so they are serialized. st may be nil when the ledger is disabled.
func buildMux(ctx context.Context, tasks *task.Registry, runner pipeline.InstitutionRunner, st store.Store) http.Handler {
	var mu sync.Mutex

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, tasks.All())
	})

	r.Post("/v1/extract", func(w http.ResponseWriter, req *http.Request) {
		var body extractRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		body.University = strings.TrimSpace(body.University)
		if body.University == "" {
			writeError(w, http.StatusBadRequest, "university is required")
			return
		}
		if body.Task == "" {
			body.Task = task.Programs().Name
		}

		desc, err := tasks.Lookup(body.Task)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		// Client disconnects do not cancel a run. Server shutdown does.
		runCtx := context.WithoutCancel(req.Context())
		runCtx, cancel := context.WithCancel(runCtx)
		defer cancel()
		stopOnShutdown := context.AfterFunc(ctx, cancel)
		defer stopOnShutdown()

		mu.Lock()
		res := runner.Run(runCtx, desc, model.Institution{Name: body.University})
		mu.Unlock()

		zap.L().Info("serve: extraction finished",
			zap.String("task", desc.Name),
			zap.String("university", body.University),
			zap.String("status", string(res.Status)),
			zap.Int("rows", len(res.Rows)),
		)

		writeJSON(w, http.StatusOK, extractResponse{
			RunID:      res.RunID,
			Task:       desc.Name,
			University: body.University,
			Status:     res.Status,
			Rows:       res.Rows,
			Attempts:   res.Attempts,
		})
	})

	r.Route("/v1/runs", func(r chi.Router) {
		r.Use(requireLedger(st))

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			filter := store.RunFilter{
				Task:        q.Get("task"),
				Status:      model.RunStatus(q.Get("status")),
				Institution: q.Get("institution"),
			}
			if v := q.Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
					return
				}
				filter.Limit = n
			}
			if v := q.Get("offset"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
					return
				}
				filter.Offset = n
			}

			runs, err := st.ListRuns(req.Context(), filter)
			if err != nil {
				zap.L().Error("serve: list runs", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to list runs")
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			run, err := st.GetRun(req.Context(), id)
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			if err != nil {
				zap.L().Error("serve: get run", zap.String("run_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to get run")
				return
			}
			attempts, err := st.ListAttempts(req.Context(), id)
			if err != nil {
				zap.L().Error("serve: list attempts", zap.String("run_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to list attempts")
				return
			}
			if attempts == nil {
				attempts = []model.Attempt{}
			}
			writeJSON(w, http.StatusOK, runDetail{Run: run, AttemptLog: attempts})
		})
	})

	return r
}

func requireLedger(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
