// Package httpapi is the JSON HTTP surface of the server.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/dmitrijs2005/weavekeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

// DefaultMaxUploadSize is the largest accepted file.
const DefaultMaxUploadSize = 10 << 20

// UserService is the wallet identity the handlers need.
type UserService interface {
	Connect(ctx context.Context, wallet string) (*models.User, string, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	CheckSession(ctx context.Context, wallet string) (*models.User, error)
	Disconnect(ctx context.Context, wallet string) error
}

// UploadService is the upload lifecycle the handlers need.
type UploadService interface {
	EstimateCost(ctx context.Context, size int64) (models.Cost, error)
	Submit(ctx context.Context, in services.SubmitInput) (*models.Upload, error)
	Retry(ctx context.Context, id, wallet string) (*models.Upload, error)
	Status(ctx context.Context, id string) (*models.Upload, error)
	ListForWallet(ctx context.Context, wallet string, page, limit int) (*services.UploadPage, error)
}

// Options tunes the handler. Zero values select defaults.
type Options struct {
	MaxUploadSize  int64
	AllowedOrigins []string
}

type Handler struct {
	users    UserService
	uploads  UploadService
	metrics  *metrics.Metrics
	logger   logging.Logger
	validate *validator.Validate
	opts     Options
	now      func() time.Time
}

func NewHandler(us UserService, ups UploadService, m *metrics.Metrics, logger logging.Logger, opts Options) *Handler {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Handler{
		users:    us,
		uploads:  ups,
		metrics:  m,
		logger:   logger.With("module", "http"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
		now:      time.Now,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(h.recoverPanics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(h.handleNotFound)
	r.MethodNotAllowed(h.handleNotFound)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/connect-wallet", h.handleConnectWallet)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Use(h.requireFreshSession)
			r.Post("/disconnect-wallet", h.handleDisconnectWallet)
		})
	})

	r.Route("/api/arweave", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Post("/upload", h.handleUpload)
		r.Get("/status/{transactionId}", h.handleStatus)
		r.Get("/files", h.handleFiles)
		r.Get("/estimate", h.handleEstimate)
		r.Post("/retry/{transactionId}", h.handleRetry)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "message": "Server is running"})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "Not Found",
		"message": "Route " + r.Method + " " + r.URL.RequestURI() + " not found",
	})
}
