package handler

import (
	"errors"
	"io"
	"net/http"

	"users-api/internal/usecase/user"
	apperrors "users-api/pkg/errors"
	"users-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// RootMessage is returned by GET /
const RootMessage = "🚀 API SQLite is working"

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// CreateUserRequest represents the HTTP request body for creating a user.
// Absent fields stay nil and are stored as NULL.
type CreateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// MessageResponse is the body of GET /
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Root handles GET /
func (h *UserHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: RootMessage})
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	log := logger.WithContext(c.Request.Context(), h.log)

	var req CreateUserRequest
	// Only JSON bodies are parsed; anything else, like an empty body, is {}
	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			log.Warn("invalid create user request", zap.Error(err))
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:    resp.ID,
		Name:  resp.Name,
		Email: resp.Email,
	})
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	resp, err := h.uc.ListUsers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = UserResponse{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
		}
	}

	c.JSON(http.StatusOK, users)
}

// handleError writes the storage message with the status for its kind
func (h *UserHandler) handleError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)

	logger.WithContext(c.Request.Context(), h.log).Info("request failed",
		zap.String("path", c.FullPath()),
		zap.String("kind", kind.String()),
		zap.Int("status", status),
		zap.Error(err),
	)

	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// statusForKind maps storage outcomes to HTTP status codes. Every insert
// failure is reported as a client error, including generic write failures.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindUniqueConstraint, apperrors.KindWrite:
		return http.StatusBadRequest
	case apperrors.KindRead, apperrors.KindSchema:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
