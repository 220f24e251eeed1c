package web

import (
	"context"
	"net/http"
	"time"

	"github.com/example/laundry-storefront/internal/dialog"
	"github.com/example/laundry-storefront/internal/listing"
	"github.com/example/laundry-storefront/internal/session"
	"github.com/example/laundry-storefront/internal/submissions"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lists serves the review and notice feeds from the backend.
type Lists interface {
	ListReviews(ctx context.Context, sess session.Session, storeID string) ([]listing.Review, error)
	ListNotices(ctx context.Context, sess session.Session) ([]listing.Notice, error)
}

type Ledger interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]submissions.Submission, error)
}

type Admins interface {
	Authenticate(ctx context.Context, username, password string) (session.Admin, error)
	SetSession(w http.ResponseWriter, r *http.Request, a session.Admin) error
	ClearSession(w http.ResponseWriter)
	GetSession(r *http.Request) (session.Admin, bool)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Dialogs     *dialog.Service
	Lists       Lists
	Submissions Ledger
	Admins      Admins
	DB          Pinger

	Names       session.Names
	Log         *zap.Logger
	CORSOrigins []string
	// MaxRequestsPerMin is the per-client budget; zero disables limiting.
	MaxRequestsPerMin int
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger())
	if len(s.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if s.MaxRequestsPerMin > 0 {
		r.Use(newRateLimiter(s.MaxRequestsPerMin, s.Log).middleware())
	}

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.GET("/stores/:storeId/reviews", s.handleReviews)
	api.GET("/notices", s.handleNotices)

	customer := api.Group("", s.requireSession())
	{
		customer.POST("/reservation-dialogs", s.handleOpenDialog)
		customer.GET("/reservation-dialogs/:id", s.handleGetDialog)
		customer.PUT("/reservation-dialogs/:id/course", s.handleSelectCourse)
		customer.POST("/reservation-dialogs/:id/add-ons/:optionId/toggle", s.handleToggleAddOn)
		customer.PUT("/reservation-dialogs/:id/dryer-time", s.handleSelectDryerTime)
		customer.POST("/reservation-dialogs/:id/reset", s.handleResetDialog)
		customer.DELETE("/reservation-dialogs/:id", s.handleCloseDialog)
		customer.POST("/reservation-dialogs/:id/submit", s.handleSubmitDialog)
		customer.GET("/submissions", s.handleSubmissions)
	}

	api.POST("/admin/login", s.handleAdminLogin)
	api.POST("/admin/logout", s.handleAdminLogout)
	admin := api.Group("/admin", s.requireAdmin())
	{
		admin.GET("/reviews", s.handleAdminReviews)
		admin.GET("/notices", s.handleNotices)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Not found"})
	})
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.DB != nil {
		if err := s.DB.Ping(c.Request.Context()); err != nil {
			s.Log.Warn("healthz: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
