package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/servicehub/internal/authorization"
	"github.com/smallbiznis/servicehub/internal/booking"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
	"github.com/smallbiznis/servicehub/internal/catalog"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
	"github.com/smallbiznis/servicehub/internal/config"
	"github.com/smallbiznis/servicehub/internal/identity"
	identitydomain "github.com/smallbiznis/servicehub/internal/identity/domain"
	"github.com/smallbiznis/servicehub/internal/notification"
	"github.com/smallbiznis/servicehub/internal/observability"
	obsmiddleware "github.com/smallbiznis/servicehub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/servicehub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/servicehub/internal/observability/tracing"
	"github.com/smallbiznis/servicehub/internal/ratelimit"
	"github.com/smallbiznis/servicehub/internal/review"
	reviewdomain "github.com/smallbiznis/servicehub/internal/review/domain"
	"github.com/smallbiznis/servicehub/internal/stats"
	statsdomain "github.com/smallbiznis/servicehub/internal/stats/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	ratelimit.Module,
	notification.Module,
	identity.Module,
	catalog.Module,
	booking.Module,
	review.Module,
	stats.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	identity   identitydomain.Service
	catalog    catalogdomain.Service
	bookings   bookingdomain.Service
	reviews    reviewdomain.Service
	stats      statsdomain.Service
	authzSvc   authorization.Service
	limiter    *ratelimit.BookingLimiter
	hub        *notification.Hub
	obsMetrics *obsmetrics.Metrics

	heartbeatInterval time.Duration
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	IdentitySvc identitydomain.Service
	CatalogSvc  catalogdomain.Service
	BookingSvc  bookingdomain.Service
	ReviewSvc   reviewdomain.Service
	StatsSvc    statsdomain.Service
	AuthzSvc    authorization.Service
	Limiter     *ratelimit.BookingLimiter `optional:"true"`
	Hub         *notification.Hub         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		identity:          p.IdentitySvc,
		catalog:           p.CatalogSvc,
		bookings:          p.BookingSvc,
		reviews:           p.ReviewSvc,
		stats:             p.StatsSvc,
		authzSvc:          p.AuthzSvc,
		limiter:           p.Limiter,
		hub:               p.Hub,
		obsMetrics:        p.ObsMetrics,
		heartbeatInterval: defaultHeartbeatInterval,
	}

	svc.registerAuthRoutes()
	svc.registerCatalogRoutes()
	svc.registerBookingRoutes()
	svc.registerReviewRoutes()
	svc.registerProviderRoutes()
	svc.registerNotificationRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)

	profile := auth.Group("/profile", s.AuthRequired())
	{
		profile.GET("", s.authorize(authorization.ObjectProfile, authorization.ActionView), s.GetProfile)
		profile.PUT("", s.authorize(authorization.ObjectProfile, authorization.ActionUpdate), s.UpdateProfile)
	}
}

func (s *Server) registerCatalogRoutes() {
	services := s.engine.Group("/api/services")

	services.GET("", s.ListServices)
	services.GET("/provider/my-services",
		s.AuthRequired(),
		s.authorize(authorization.ObjectService, authorization.ActionView),
		s.ListMyServices,
	)
	services.GET("/:id", s.GetService)

	owned := services.Group("", s.AuthRequired())
	{
		owned.POST("", s.authorize(authorization.ObjectService, authorization.ActionCreate), s.CreateService)
		owned.PUT("/:id", s.authorize(authorization.ObjectService, authorization.ActionUpdate), s.UpdateService)
		owned.DELETE("/:id", s.authorize(authorization.ObjectService, authorization.ActionDelete), s.ArchiveService)
	}
}

func (s *Server) registerBookingRoutes() {
	bookings := s.engine.Group("/api/bookings", s.AuthRequired())

	bookings.GET("/stats", s.authorize(authorization.ObjectStats, authorization.ActionView), s.BookingStats)
	bookings.GET("", s.authorize(authorization.ObjectBooking, authorization.ActionView), s.ListBookings)
	bookings.POST("",
		s.authorize(authorization.ObjectBooking, authorization.ActionCreate),
		s.BookingCreateRateLimit(),
		s.CreateBooking,
	)
	bookings.GET("/:id", s.authorize(authorization.ObjectBooking, authorization.ActionView), s.GetBooking)
	bookings.PUT("/:id/status", s.authorize(authorization.ObjectBooking, authorization.ActionTransition), s.TransitionBooking)
	bookings.PUT("/:id/cancel", s.authorize(authorization.ObjectBooking, authorization.ActionCancel), s.CancelBooking)
}

func (s *Server) registerReviewRoutes() {
	reviews := s.engine.Group("/api/reviews")

	reviews.GET("", s.ListReviews)
	reviews.GET("/provider/:providerId/stats", s.ProviderReviewStats)
	reviews.GET("/:id", s.GetReview)
	reviews.POST("",
		s.AuthRequired(),
		s.authorize(authorization.ObjectReview, authorization.ActionCreate),
		s.SubmitReview,
	)
}

func (s *Server) registerProviderRoutes() {
	s.engine.GET("/api/providers/:id", s.GetProviderProfile)
}

func (s *Server) registerNotificationRoutes() {
	s.engine.GET("/api/notifications/stream",
		s.AuthRequired(),
		s.authorize(authorization.ObjectNotification, authorization.ActionStream),
		s.StreamNotifications,
	)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
