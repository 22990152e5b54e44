package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/dmitrijs2005/webshelf/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type validator interface {
	Validate() error
}

// bind decodes the JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *handlers) bind(c *gin.Context, dst validator) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "malformed JSON body")
		return false
	}
	if err := dst.Validate(); err != nil {
		writeError(c, h.logger, err)
		return false
	}
	return true
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{Message: "User registered successfully", UserID: user.ID.String()})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// me answers with the live user record, so it notices deleted accounts and
// role changes that the gate cannot.
func (h *handlers) me(c *gin.Context) {
	user, ok := h.liveUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// liveUser re-validates the caller's token against the store. Every failure
// is a 401 "invalid token", including a subject that no longer exists.
func (h *handlers) liveUser(c *gin.Context) (*models.User, bool) {
	token, err := auth.BearerToken(c.GetHeader(headerAuthorization))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errBodyInvalidToken)
		return nil, false
	}

	user, err := h.auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		var te *auth.TokenError
		if errors.As(err, &te) || errors.Is(err, common.ErrorNotFound) {
			h.logger.Info(c.Request.Context(), "token rejected on live check", "request_id", requestID(c), "reason", auth.RejectReason(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, errBodyInvalidToken)
			return nil, false
		}
		writeError(c, h.logger, err)
		return nil, false
	}
	return user, true
}

// requireLiveAdmin lets the request continue only for a caller who is an
// admin according to the store right now.
func (h *handlers) requireLiveAdmin(c *gin.Context) bool {
	user, ok := h.liveUser(c)
	if !ok {
		return false
	}
	if user.Role != models.RoleAdmin {
		writeError(c, h.logger, common.ErrorForbidden)
		return false
	}
	return true
}

func identity(c *gin.Context) *auth.Identity {
	ident, _ := auth.IdentityFromContext(c.Request.Context())
	return ident
}

// canModify allows callers to change their own account; admins may change
// any account.
func canModify(ident *auth.Identity, target uuid.UUID) bool {
	return ident != nil && (ident.UserID == target || ident.Role == models.RoleAdmin)
}

func (h *handlers) listUsers(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		badRequest(c, "page must be an integer")
		return
	}
	perPage, err := queryInt(c, "per_page")
	if err != nil {
		badRequest(c, "per_page must be an integer")
		return
	}

	res, err := h.users.List(c.Request.Context(), models.PageRequest{Page: page, PerPage: perPage})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (h *handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Role == models.RoleAdmin && !h.requireLiveAdmin(c) {
		return
	}

	user, err := h.users.Create(c.Request.Context(), services.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handlers) userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *handlers) getUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) updateUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	if !canModify(identity(c), id) {
		writeError(c, h.logger, common.ErrorForbidden)
		return
	}

	var req updateUserRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Role != nil && !h.requireLiveAdmin(c) {
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, req.toModel())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) deleteUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}
	if !canModify(identity(c), id) {
		writeError(c, h.logger, common.ErrorForbidden)
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
