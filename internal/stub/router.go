package stub

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the Gin engine with the remote contract's routes.
func NewRouter(handler *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/auth/login", handler.Login)
	r.POST("/auth/register", handler.Register)

	protected := r.Group("/", handler.AuthRequired)
	protected.GET("/users/me", handler.Me)
	protected.GET("/users/staff", handler.ListStaff)
	protected.POST("/users/staff", handler.CreateStaff)
	protected.GET("/customers", handler.ListCustomers)
	protected.POST("/customers", handler.CreateCustomer)
	protected.GET("/sales", handler.ListSales)
	protected.POST("/sales", handler.CreateSale)
	protected.GET("/sales/summary", handler.Summary)
	protected.GET("/sales/export", handler.Export)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("stub router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
