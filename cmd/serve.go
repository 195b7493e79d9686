package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/shopping-cli/internal/model"
	"github.com/sells-group/shopping-cli/internal/pipeline"
)

const maxRequestBytes = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for shopping questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		runner, err := initRunner(cfg, "serve")
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(runner, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the HTTP API over runner.
func buildRouter(runner *pipeline.Runner, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	h := &apiHandler{runner: runner}
	r.Get("/health", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/profiles", h.profiles)
		r.Post("/ask", h.ask)
		r.Post("/ask/stream", h.askStream)
	})
	return r
}

// requestLogger logs one line per request on the global logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type apiHandler struct {
	runner *pipeline.Runner
}

func (h *apiHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) profiles(w http.ResponseWriter, _ *http.Request) {
	profiles := h.runner.Profiles()
	writeJSON(w, http.StatusOK, map[string]any{
		"default":  profiles.Default(),
		"profiles": profileList(profiles),
	})
}

func (h *apiHandler) ask(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAskRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if result == nil {
		writeError(w, runErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, resultStatus(result), result)
}

// askStream answers like ask but streams progress as server-sent events:
// "progress" for each pipeline event, then one "result" or "error".
func (h *apiHandler) askStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAskRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	type outcome struct {
		result *model.RunResult
		err    error
	}
	events := make(chan pipeline.Event, 16)
	done := make(chan outcome, 1)
	go func() {
		result, err := h.runner.Run(r.Context(), req, pipeline.WithProgress(func(ev pipeline.Event) {
			events <- ev
		}))
		close(events)
		done <- outcome{result: result, err: err}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Drain every event even after a write error so the run never blocks.
	writeFailed := false
	for ev := range events {
		if writeFailed {
			continue
		}
		if err := writeSSE(w, "progress", ev); err != nil {
			writeFailed = true
			continue
		}
		flusher.Flush()
	}

	out := <-done
	if writeFailed {
		return
	}
	if out.result == nil {
		writeSSE(w, "error", errorBody{Error: out.err.Error()}) //nolint:errcheck
	} else {
		writeSSE(w, "result", out.result) //nolint:errcheck
	}
	flusher.Flush()
}

func decodeAskRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, eris.Wrap(err, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, eris.New("query is required")
	}
	for _, turn := range req.Messages {
		if turn.Role != model.RoleUser && turn.Role != model.RoleAssistant {
			return req, eris.Errorf("unknown message role %q", turn.Role)
		}
	}
	return req, nil
}

// runErrorStatus maps an error returned without a result. Those are request
// problems such as an unknown profile, or a cancelled client.
func runErrorStatus(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// resultStatus is 200 for a completed run and 502 for an aborted one; the
// body is the run result either way.
func resultStatus(result *model.RunResult) int {
	if result.Outcome == model.OutcomeAborted {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "encode event")
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
