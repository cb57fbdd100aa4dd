package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/umlhub/umlhub/auth"
	"github.com/umlhub/umlhub/internal/config"
)

// Server aggregates the API handlers and the realtime hub
type Server struct {
	authHandler    *AuthHandler
	userHandler    *UserHandler
	projectHandler *ProjectHandler
	diagramHandler *DiagramHandler
	shareHandler   *ShareHandler
	exportHandler  *ExportHandler
	middleware     *auth.Middleware
	wsHub          *WebSocketHub
}

// NewServer creates the API server with GORM-backed stores
func NewServer(cfg *config.Config, db *gorm.DB, authService *auth.Service) *Server {
	users := NewGormUserStore(db)
	projects := NewGormProjectStore(db)
	diagrams := NewGormDiagramStore(db)
	shares := NewGormShareStore(db)

	secureCookies := strings.HasPrefix(cfg.Server.FrontendOrigin, "https://")

	return &Server{
		authHandler:    NewAuthHandler(users, authService, secureCookies),
		userHandler:    NewUserHandler(users),
		projectHandler: NewProjectHandler(projects),
		diagramHandler: NewDiagramHandler(diagrams),
		shareHandler:   NewShareHandler(shares, authService, cfg.Server.FrontendOrigin, cfg.Auth.Share.DefaultTTLHours),
		exportHandler:  NewExportHandler(),
		middleware:     auth.NewMiddleware(authService, shares),
		wsHub:          NewWebSocketHub(cfg.WebSocket),
	}
}

// Hub exposes the realtime hub, used by diagnostics and tests
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// RegisterHandlers registers all routes on the router
func (s *Server) RegisterHandlers(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "ok",
			"connections": s.wsHub.ConnectionCount(),
			"rooms":       s.wsHub.RoomCount(),
		})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", s.authHandler.Register)
		authGroup.POST("/login", s.authHandler.Login)
		authGroup.POST("/refresh", s.authHandler.Refresh)
		authGroup.POST("/logout", s.authHandler.Logout)
	}

	users := r.Group("/users", s.middleware.AuthRequired())
	{
		users.GET("/me", s.userHandler.Me)
		users.GET("", s.userHandler.List)
		users.POST("", s.userHandler.Create)
		users.GET("/:id", s.userHandler.Get)
		users.PUT("/:id", s.userHandler.Update)
		users.DELETE("/:id", s.userHandler.Delete)
	}

	projects := r.Group("/projects", s.middleware.AuthRequired())
	{
		projects.GET("", s.projectHandler.List)
		projects.POST("", s.projectHandler.Create)
		projects.GET("/:id", s.projectHandler.Get)
		projects.PUT("/:id", s.projectHandler.Update)
		projects.DELETE("/:id", s.projectHandler.Delete)
		projects.GET("/:id/diagrams", s.diagramHandler.ListByProject)
	}

	diagrams := r.Group("/diagrams", s.middleware.AuthOptional())
	{
		diagrams.POST("", s.middleware.AuthRequired(), s.diagramHandler.Create)
		diagrams.GET("/:id", s.middleware.RequireDiagramView(), s.diagramHandler.Get)
		diagrams.PUT("/:id", s.middleware.RequireDiagramEdit(), s.diagramHandler.Update)
		diagrams.PATCH("/:id", s.middleware.RequireDiagramEdit(), s.diagramHandler.Patch)
		diagrams.DELETE("/:id", s.middleware.AuthRequired(), s.diagramHandler.Delete)
		diagrams.GET("/:id/versions", s.middleware.RequireDiagramView(), s.diagramHandler.ListVersions)
		diagrams.GET("/:id/xmi", s.middleware.RequireDiagramView(), s.diagramHandler.ExportXMI)
		diagrams.POST("/:id/share", s.middleware.AuthRequired(), s.shareHandler.Create)
	}
	r.DELETE("/shares/:jti", s.middleware.AuthRequired(), s.shareHandler.Revoke)

	r.POST("/export/xmi", s.middleware.AuthOptional(), s.exportHandler.XMI)
	r.POST("/generate/springboot", s.middleware.AuthOptional(), s.exportHandler.SpringBoot)

	r.GET("/ws", s.middleware.AuthOptional(), s.wsHub.HandleWS)
}
