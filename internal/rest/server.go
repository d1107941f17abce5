package rest

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robalyx/reciprocal/internal/database"
	"github.com/robalyx/reciprocal/internal/rest/handler"
	"github.com/robalyx/reciprocal/internal/setup/config"
	"github.com/robalyx/reciprocal/internal/social"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Server implements the REST control surface.
type Server struct {
	candidateHandler *handler.CandidateHandler
	whitelistHandler *handler.WhitelistHandler
	workerHandler    *handler.WorkerHandler
}

// NewServer creates a new REST API server.
func NewServer(
	store database.Store, api social.API, caller *social.Caller, monitor handler.StatusLister,
	clock clockwork.Clock, cfg *config.REST, logger *zap.Logger,
) http.Handler {
	server := &Server{
		candidateHandler: handler.NewCandidateHandler(
			store, api, caller, clock, cfg.DefaultCandidates, cfg.MaxCandidates, logger,
		),
		whitelistHandler: handler.NewWhitelistHandler(store.Whitelist(), logger),
		workerHandler:    handler.NewWorkerHandler(monitor, clock, logger),
	}

	access := newAccessLog(clock, logger)

	router := bunrouter.New()

	router.Use(access.Middleware).WithGroup("/v1", func(g *bunrouter.Group) {
		g.GET("/remove_candidates", server.candidateHandler.ListCandidates)
		g.POST("/remove_candidates/confirm", server.candidateHandler.ConfirmRemove)
		g.POST("/whitelist", server.whitelistHandler.AddUser)
		g.GET("/workers", server.workerHandler.ListWorkers)
	})

	router.GET("/metrics", bunrouter.HTTPHandler(promhttp.Handler()))

	return gzhttp.GzipHandler(router)
}
