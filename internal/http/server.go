package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"splid/internal/cache"
	"splid/internal/log"
	"splid/internal/middleware/ratelimit"
	"splid/internal/middleware/security"
	"splid/internal/services"
)

// Options configure a Server. Zero values fall back to defaults.
type Options struct {
	// Ready reports whether the backend can serve requests. Nil means always
	// ready.
	Ready              func(context.Context) error
	DraftTTL           time.Duration
	DraftCacheSize     int
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	edits    *services.EditService
	drafts   *cache.LRUCache[*draft]
	limiter  *ratelimit.Limiter
	detector *security.Detector
	ready    func(context.Context) error
	logger   *log.Logger
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, edits *services.EditService, opts Options) *Server {
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = 30 * time.Minute
	}
	if opts.DraftCacheSize <= 0 {
		opts.DraftCacheSize = 1000
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		edits:    edits,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		ready:    opts.Ready,
		logger:   logger,
		started:  time.Now(),
	}
	s.drafts = cache.NewLRUCache[*draft](opts.DraftCacheSize, opts.DraftTTL,
		cache.WithSlidingExpiration[*draft](),
		cache.WithEvictionCallback(func(id string, d *draft) {
			logger.WithComponent(log.ComponentDraft).Debug("Draft expired", log.FieldDraftID, id)
		}))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestLogger(s.detector.ClientIP))
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errMethodNotAllowed)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	limit := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errRateLimited)
	})

	r.Route("/groups/{groupID}", func(r chi.Router) {
		r.Get("/members", s.handleListMembers)
		r.Get("/entries", s.handleListEntries)
	})

	r.Route("/entries/{entryID}", func(r chi.Router) {
		r.Get("/", s.handleGetEntry)
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Delete("/", s.handleDeleteEntry)
			r.Post("/currency", s.handleChangeCurrency)
			r.Post("/merge", s.handleMergeSubItems)
			r.Put("/amount", s.handleSetAmount)
			r.Post("/items", s.handleAddSubItem)
			r.Delete("/items/{index}", s.handleDeleteSubItem)
		})
	})

	r.Route("/drafts", func(r chi.Router) {
		r.With(limit).Post("/", s.handleCreateDraft)
		r.Route("/{draftID}", func(r chi.Router) {
			r.Get("/", s.handleGetDraft)
			r.Delete("/", s.handleCancelDraft)
			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/participants", s.handleAddParticipant)
				r.Delete("/participants/{participantID}", s.handleRemoveParticipant)
				r.Put("/participants/{participantID}/percentage", s.handleSetPercentage)
				r.Put("/participants/{participantID}/amount", s.handleSetParticipantAmount)
				r.Post("/commit", s.handleCommitDraft)
			})
		})
	})

	return r
}

// DraftCache exposes the draft store so expired drafts can be cleaned
// periodically by a cache.Manager.
func (s *Server) DraftCache() cache.Cleaner {
	return s.drafts
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
