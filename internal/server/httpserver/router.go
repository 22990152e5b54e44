package httpserver

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/webshelf/internal/buildinfo"
	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/metrics"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/dmitrijs2005/webshelf/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthService is implemented by *services.AuthService.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

// UserService is implemented by *services.UserService.
type UserService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Create(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, req models.PageRequest) (*models.UserPage, error)
}

type Deps struct {
	Auth        AuthService
	Users       UserService
	Gate        *auth.Gate
	Metrics     *metrics.Metrics
	Logger      logging.Logger
	CORSOrigins []string
}

type handlers struct {
	auth   AuthService
	users  UserService
	logger logging.Logger
}

// NewRouter builds the engine with middleware in order: request id,
// recovery, CORS, authentication gate.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With("module", "http")

	r := gin.New()
	r.Use(RequestID(), Recovery(logger), CORS(d.CORSOrigins), Authenticate(d.Gate, logger, d.Metrics))

	h := &handlers{auth: d.Auth, users: d.Users, logger: logger}

	api := r.Group("/api")
	api.GET("/health", h.health)

	public := api.Group("/public/auth")
	public.POST("/register", h.register)
	public.POST("/login", h.login)

	api.GET("/me", h.me)

	users := api.Group("/users")
	users.GET("", h.listUsers)
	users.POST("", h.createUser)
	users.GET("/:id", h.getUser)
	users.PUT("/:id", h.updateUser)
	users.DELETE("/:id", h.deleteUser)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "route not found"})
	})

	return r
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.Version})
}
