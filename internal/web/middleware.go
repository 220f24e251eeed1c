package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/example/laundry-storefront/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ctxSession = "session"
	ctxAdmin   = "admin"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header("X-Request-ID", rid)

		c.Next()

		s.Log.Info("request",
			zap.String("request_id", rid),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.Log.Error("unhandled panic", zap.Any("error", err), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
			}
		}()
		c.Next()
	}
}

// limiterIdle is how long an IP's bucket is kept after its last request. A
// bucket refills completely within a minute, so dropping it after that is the
// same as keeping it.
const limiterIdle = 3 * time.Minute

// rateLimiter keeps one token bucket per client IP. Idle buckets are swept at
// most once per limiterIdle, on the request path.
type rateLimiter struct {
	perMin int
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(perMin int, log *zap.Logger) *rateLimiter {
	return &rateLimiter{perMin: perMin, log: log, now: time.Now, limiters: map[string]*ipLimiter{}}
}

func (l *rateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdle {
		l.sweep(now)
	}
	e, ok := l.limiters[ip]
	if !ok {
		e = &ipLimiter{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.limiters[ip] = e
	}
	e.lastSeen = now
	return e.lim
}

// sweep drops buckets idle for limiterIdle. Callers hold l.mu.
func (l *rateLimiter) sweep(now time.Time) {
	for ip, e := range l.limiters {
		if now.Sub(e.lastSeen) >= limiterIdle {
			delete(l.limiters, ip)
		}
	}
	l.lastSweep = now
}

func (l *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.get(ip).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Message: "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}

// requireSession reads the customer's backend session from its cookies.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := session.FromRequest(c.Request, s.Names)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Please sign in to continue."})
			return
		}
		c.Set(ctxSession, sess)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.Admins.GetSession(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Admin sign-in required."})
			return
		}
		c.Set(ctxAdmin, a)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) session.Session {
	v, _ := c.Get(ctxSession)
	sess, _ := v.(session.Session)
	return sess
}

// optionalSession forwards the customer's cookies when present; public lists
// work without them.
func (s *Server) optionalSession(c *gin.Context) session.Session {
	sess, err := session.FromRequest(c.Request, s.Names)
	if err != nil {
		return session.Session{}
	}
	return sess
}
