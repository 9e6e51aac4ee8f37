package httpserver

import (
	"time"

	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	customMiddleware "github.com/avatarctic/novel-reader/go/internal/infrastructure/httpserver/middleware"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type ServerDeps struct {
	Catalog        ports.CatalogService
	Media          ports.MediaService
	Cache          ports.CacheAdmin
	Events         ports.MutationNotifier
	HealthCheckers []ports.HealthChecker
	// Registry receives the HTTP metrics and is served on /metrics. A private registry
	// is created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	catalog        ports.CatalogService
	media          ports.MediaService
	cache          ports.CacheAdmin
	events         ports.MutationNotifier
	registry       *prometheus.Registry
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	requestsTotal, requestDuration := newHTTPMetrics(registry)

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		catalog:        deps.Catalog,
		media:          deps.Media,
		cache:          deps.Cache,
		events:         deps.Events,
		registry:       registry,
		healthCheckers: deps.HealthCheckers,
		middleware:     customMiddleware.NewMiddlewareCollection(logger, requestsTotal, requestDuration),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
