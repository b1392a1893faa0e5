package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"

	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/adapters/storage"
	"modelmarket/internal/auth"
	"modelmarket/internal/ports"
	"modelmarket/internal/realtime"
	"modelmarket/internal/services/chat"
	"modelmarket/internal/services/datasets"
	"modelmarket/internal/services/domains"
	"modelmarket/internal/services/projects"
	"modelmarket/internal/services/runs"
	"modelmarket/internal/services/training"
	"modelmarket/internal/services/wallet"
	"modelmarket/internal/session"
	"modelmarket/internal/workers/runner"
)

// Analytics reports usage figures from the backend.
type Analytics interface {
	Analytics(ctx context.Context, rangeParam string) (map[string]any, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth      *auth.Service
	Runs      *runs.Service
	RunQueue  ports.RunQueue
	Projects  *projects.Service
	Datasets  *datasets.Service
	Training  *training.Service
	Domains   *domains.Service
	Wallet    *wallet.Service
	Chat      *chat.Service
	Analytics Analytics
	Broker    *realtime.Broker
	Storage   *storage.Local
	// Spool keeps model uploads while their run exists. It is not served.
	Spool *storage.Local
	DB    Pinger

	TrainerToken string
	// MaxUpload caps request bodies carrying files.
	MaxUpload int64
	Logger    *slog.Logger
}

type Server struct {
	auth      *auth.Service
	runs      *runs.Service
	runQueue  ports.RunQueue
	projects  *projects.Service
	datasets  *datasets.Service
	training  *training.Service
	domains   *domains.Service
	wallet    *wallet.Service
	chat      *chat.Service
	analytics Analytics
	broker    *realtime.Broker
	storage   *storage.Local
	spool     *storage.Local
	db        Pinger

	trainerToken string
	maxUpload    int64
	logger       *slog.Logger
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUpload <= 0 {
		d.MaxUpload = 2 << 30
	}
	return &Server{
		auth:         d.Auth,
		runs:         d.Runs,
		runQueue:     d.RunQueue,
		projects:     d.Projects,
		datasets:     d.Datasets,
		training:     d.Training,
		domains:      d.Domains,
		wallet:       d.Wallet,
		chat:         d.Chat,
		analytics:    d.Analytics,
		broker:       d.Broker,
		storage:      d.Storage,
		spool:        d.Spool,
		db:           d.DB,
		trainerToken: d.TrainerToken,
		maxUpload:    d.MaxUpload,
		logger:       d.Logger,
	}
}

// Routes returns the chi router serving the whole API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(requestLogger(s.logger))
	r.Use(recovery(s.logger))

	r.Get("/healthz", s.health)
	if s.storage != nil {
		r.Handle("/storage/*", http.StripPrefix("/storage/", noDirListing(http.FileServer(http.Dir(s.storage.Root())))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", s.health)

		r.Group(func(r chi.Router) {
			r.Use(s.guard(session.Public))
			r.Post("/auth/signup", s.signUp)
			r.Post("/auth/signin", s.signIn)
		})
		r.Post("/auth/signout", s.signOut)
		r.Get("/session", s.currentSession)

		r.Route("/trainer", func(r chi.Router) {
			r.Use(s.trainerOnly)
			r.Post("/claim", s.trainerClaim)
			r.Post("/jobs/{id}/progress", s.trainerProgress)
			r.Post("/jobs/{id}/complete", s.trainerComplete)
			r.Post("/jobs/{id}/fail", s.trainerFail)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.guard(session.Protected))

			r.Post("/verifications", s.createVerification)
			r.Get("/verifications/{id}", s.getVerification)
			r.Delete("/verifications/{id}", s.resetRun)
			r.Post("/verifications/{id}/cancel", s.cancelRun)
			r.Get("/verifications/{id}/logs", s.runLogs)
			r.Get("/verifications/{id}/report", s.downloadReport)

			r.Post("/compressions", s.createCompression)
			r.Get("/compressions/{id}", s.getCompression)
			r.Delete("/compressions/{id}", s.resetRun)
			r.Post("/compressions/{id}/cancel", s.cancelRun)
			r.Get("/compressions/{id}/logs", s.runLogs)

			r.Get("/projects", s.listProjects)
			r.Post("/projects", s.createProject)
			r.Get("/projects/{id}", s.getProject)
			r.Patch("/projects/{id}", s.updateProject)
			r.Delete("/projects/{id}", s.deleteProject)
			r.Put("/projects/{id}/tasks", s.setProjectTask)

			r.Get("/datasets", s.listDatasets)
			r.Post("/datasets", s.uploadDataset)

			r.Get("/training-jobs", s.listTraining)
			r.Post("/training-jobs", s.enqueueTraining)
			r.Get("/training-jobs/{id}", s.getTraining)
			r.Post("/training-jobs/{id}/cancel", s.cancelTraining)

			r.Get("/domains", s.listDomains)
			r.Post("/domains", s.addDomain)
			r.Delete("/domains/{id}", s.deleteDomain)

			r.Get("/wallet", s.getWallet)
			r.Get("/wallet/transactions", s.listTransactions)
			r.Get("/wallet/packages", s.listPackages)
			r.Post("/wallet/checkout", s.checkout)
			r.Post("/wallet/verify", s.verifyPayment)

			r.Post("/chat", s.postChat)
			r.Get("/analytics", s.getAnalytics)

			r.Get("/realtime", s.realtime)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			apierr.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func noDirListing(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, apiErr *apierr.APIError) {
	apierr.WriteError(w, apiErr, middleware.GetReqID(r.Context()))
}

// fail maps err to an API error, logging the unexpected ones.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.FromError(err)
	if apiErr.Code == apierr.CodeInternalError || apiErr.Code == apierr.CodeBadGateway {
		s.logger.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	s.writeError(w, r, apiErr)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.Validation("request body is required")
		}
		return apierr.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}

// queryParam binds an optional form-style query parameter.
func queryParam(r *http.Request, name string, dst any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dst); err != nil {
		return apierr.Validation("invalid query parameter " + name).WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}

// processInline runs a queued run on the request goroutine, bounded by timeoutSec.
func (s *Server) processInline(ctx context.Context, runID string, timeoutSec int) {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := runner.ProcessInline(ctx, s.runQueue, s.runs, runID); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			s.logger.Warn("inline run was not claimable", "run_id", runID)
			return
		}
		s.logger.Debug("inline run ended with error", "run_id", runID, "error", err)
	}
}
