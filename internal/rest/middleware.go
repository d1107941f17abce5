package rest

import (
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/reciprocal/internal/metrics"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// accessLog logs and measures every API request.
type accessLog struct {
	clock  clockwork.Clock
	logger *zap.Logger
}

func newAccessLog(clock clockwork.Clock, logger *zap.Logger) *accessLog {
	return &accessLog{
		clock:  clock,
		logger: logger.Named("access"),
	}
}

// Middleware wraps a route handler.
func (m *accessLog) Middleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		start := m.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		err := next(rec, req)

		route := req.Route()
		elapsed := m.clock.Since(start)

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.String("remote", req.RemoteAddr),
			zap.Duration("duration", elapsed),
		}

		switch {
		case err != nil:
			m.logger.Error("Request failed", append(fields, zap.Error(err))...)
		case rec.status >= http.StatusInternalServerError:
			m.logger.Warn("Request returned server error", fields...)
		default:
			m.logger.Debug("Request served", fields...)
		}

		return err
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
