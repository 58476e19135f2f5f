package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/engagement-cli/internal/classify"
	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/pipeline"
	"github.com/sells-group/engagement-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve", true)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			baseCtx:  ctx,
			runner:   env.Pipeline,
			store:    env.Store,
			gatherer: prometheus.DefaultGatherer,
			maxBatch: cfg.Batch.MaxURLs,
			now:      time.Now,
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(api, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
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

// runner is the part of the pipeline the API drives.
type runner interface {
	Run(ctx context.Context, rawURL string) pipeline.Result
	Batch(ctx context.Context, urls []string) []pipeline.Result
}

// apiServer holds the handlers' dependencies.
type apiServer struct {
	// baseCtx outlives individual requests so a shared extraction is not
	// cancelled when the first caller disconnects.
	baseCtx  context.Context
	runner   runner
	store    store.Store // nil disables the records endpoints
	gatherer prometheus.Gatherer
	maxBatch int
	now      func() time.Time

	group singleflight.Group
}

func newRouter(s *apiServer, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/batch", s.handleBatch)
		r.Get("/classify", s.handleClassify)
		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Delete("/records/{id}", s.handleDeleteRecord)
	})
	return r
}

type extractRequest struct {
	URL         string `json:"url"`
	Save        bool   `json:"save"`
	CreatorName string `json:"creator_name"`
	AccountName string `json:"account_name"`
}

type batchRequest struct {
	URLs        []string `json:"urls"`
	Save        bool     `json:"save"`
	CreatorName string   `json:"creator_name"`
	AccountName string   `json:"account_name"`
}

type extractResponse struct {
	pipeline.Result
	ID string `json:"id,omitempty"`
}

type batchResponse struct {
	Results   []extractResponse `json:"results"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeAPIError(w, http.StatusBadRequest, "url is required")
		return
	}

	v, _, shared := s.group.Do(req.URL, func() (any, error) {
		return s.runner.Run(s.baseCtx, req.URL), nil
	})
	res := v.(pipeline.Result)
	if shared {
		zap.L().Debug("serve: shared in-flight extraction", zap.String("url", req.URL))
	}

	resp := extractResponse{Result: res}
	if req.Save {
		ids, err := s.save(r.Context(), saveOptions{Save: true, Creator: req.CreatorName, Account: req.AccountName}, []pipeline.Result{res})
		if err != nil {
			writeAPIError(w, statusFor(err), err.Error())
			return
		}
		resp.ID = ids[0]
	}

	status := http.StatusOK
	switch res.Record.ErrorKind {
	case model.KindInvalidURL, model.KindUnsupportedPlatform:
		status = http.StatusUnprocessableEntity
	}
	writeResponse(w, status, resp)
}

func (s *apiServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		writeAPIError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if s.maxBatch > 0 && len(req.URLs) > s.maxBatch {
		writeAPIError(w, http.StatusBadRequest, fmt.Sprintf("at most %d urls per batch", s.maxBatch))
		return
	}

	results := s.runner.Batch(r.Context(), req.URLs)

	var ids []string
	if req.Save {
		var err error
		ids, err = s.save(r.Context(), saveOptions{Save: true, Creator: req.CreatorName, Account: req.AccountName}, results)
		if err != nil {
			writeAPIError(w, statusFor(err), err.Error())
			return
		}
	}

	resp := batchResponse{Results: make([]extractResponse, len(results)), Total: len(results)}
	for i, res := range results {
		resp.Results[i] = extractResponse{Result: res}
		if ids != nil {
			resp.Results[i].ID = ids[i]
		}
		if res.Record.Failed() {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	writeResponse(w, http.StatusOK, resp)
}

func (s *apiServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeAPIError(w, http.StatusBadRequest, "url is required")
		return
	}
	ref, err := classify.Classify(raw)
	if err != nil {
		writeResponse(w, http.StatusUnprocessableEntity, map[string]string{
			"error":      err.Error(),
			"error_kind": string(model.KindOf(err)),
		})
		return
	}
	writeResponse(w, http.StatusOK, ref)
}

func (s *apiServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "no record store configured")
		return
	}
	q := r.URL.Query()
	flags := filterFlags{From: q.Get("from"), To: q.Get("to"), Platform: q.Get("platform")}
	var err error
	if flags.Limit, err = intParam(q.Get("limit"), store.DefaultListLimit); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if flags.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	f, err := flags.filter(time.UTC)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := s.store.ListRecords(r.Context(), f)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.store.CountRecords(r.Context(), f)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []store.StoredRecord{}
	}
	writeResponse(w, http.StatusOK, map[string]any{"records": recs, "total": total})
}

func (s *apiServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "no record store configured")
		return
	}
	rec, err := s.store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, statusFor(err), err.Error())
		return
	}
	writeResponse(w, http.StatusOK, rec)
}

func (s *apiServer) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "no record store configured")
		return
	}
	if err := s.store.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// save persists results and returns their ids in order.
func (s *apiServer) save(ctx context.Context, opts saveOptions, results []pipeline.Result) ([]string, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	recs := toStored(opts, results, s.now())
	if err := s.store.SaveRecords(ctx, recs); err != nil {
		return nil, eris.Wrap(err, "save records")
	}
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	return ids, nil
}

var errNoStore = eris.New("no record store configured")

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, map[string]string{"error": msg})
}
