package wire

import (
	"net/http"

	"tcg-server/internal/adaptor"
	"tcg-server/internal/data/repository"
	"tcg-server/internal/usecase"
	"tcg-server/pkg/middleware"
	"tcg-server/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the wired router and background workers.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
	Handler *adaptor.Handler
}

// Close releases connections the HTTP server does not track.
func (a *App) Close() {
	a.Handler.WS.Shutdown()
}

// Wiring builds services, handlers and routes.
func Wiring(repo *repository.Repository, config *utils.Config, logger *zap.Logger) (*App, error) {
	secret := []byte(config.Session.Secret)
	if len(secret) == 0 {
		generated, err := utils.RandomSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	service := usecase.NewService(repo, utils.NewTokenCodec(secret), config, logger)
	handler := adaptor.NewHandler(service, config.App.Version, logger)

	return &App{
		Router:  setupRouter(handler, service, logger),
		Service: service,
		Handler: handler,
	}, nil
}

func setupRouter(handler *adaptor.Handler, service *usecase.Service, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	wireAuth(r, handler.Auth, service.Auth, logger)
	wireUser(r, handler.User, service.Auth, logger)
	wireWS(r, handler.WS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
