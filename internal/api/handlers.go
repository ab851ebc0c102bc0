package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/services"
)

// ErrorResponse is the body of every non-2xx reply. Clients show Message.
type ErrorResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

const (
	CodeBadRequest = "BAD_REQUEST"
	CodeValidation = "VALIDATION_FAILED"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 16 << 10

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := s.service.Ping(ctx); err != nil {
		log.FromContext(c.Request.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleList(c *gin.Context) {
	expenses, err := s.service.ListExpenses(c.Request.Context())
	if err != nil {
		s.internalError(c, log.OpList, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func (s *Server) handleCreate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req services.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, CodeBadRequest, "Malformed expense data", nil)
		return
	}

	created, err := s.service.CreateExpense(c.Request.Context(), req)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.writeError(c, http.StatusBadRequest, CodeValidation, verr.Error(), verr.Fields)
			return
		}
		s.internalError(c, log.OpCreate, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, CodeBadRequest, "Invalid expense id", nil)
		return
	}

	switch err := s.service.DeleteExpense(c.Request.Context(), id); {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, services.ErrInvalidID):
		s.writeError(c, http.StatusBadRequest, CodeBadRequest, "Expense ID must be a positive number", nil)
	case errors.Is(err, services.ErrNotFound):
		s.writeError(c, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	default:
		s.internalError(c, log.OpDelete, err)
	}
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	log.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "Expense operation failed",
		log.FieldOperation, op,
		log.FieldError, err,
		log.FieldErrorType, log.ErrorTypeInternal)
	s.writeError(c, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred", nil)
}

func (s *Server) writeError(c *gin.Context, status int, code, msg string, fields map[string]string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Timestamp: s.now().UTC(),
		Code:      code,
		Message:   msg,
		Errors:    fields,
	})
}
