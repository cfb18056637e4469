package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/auth"
	"github.com/kurspanel/kurspanel-server/internal/core"
	"github.com/kurspanel/kurspanel-server/internal/proto"
)

// Handlers provides the REST endpoints of the record store server.
type Handlers struct {
	store       core.RecordStore
	authService *auth.Service
	log         *zerolog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(store core.RecordStore, authService *auth.Service, logger *zerolog.Logger) *Handlers {
	return &Handlers{store: store, authService: authService, log: logger}
}

// Login authenticates a school and returns a session token.
// POST /api/login
func (h *Handlers) Login(c *gin.Context) {
	var req proto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}

	token, school, err := h.authService.Login(c.Request.Context(), req.SchoolID, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, proto.ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("school_id", req.SchoolID).Msg("login failed")
		c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("school_id", school.ID).Msg("school logged in")
	c.JSON(http.StatusOK, proto.LoginResponse{
		Token:  token,
		School: proto.FromSchool(*school),
	})
}

// ListSchools returns the full current snapshot.
// GET /api/schools
func (h *Handlers) ListSchools(c *gin.Context) {
	schools, err := h.store.FetchSchools(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to fetch schools")
		c.JSON(http.StatusInternalServerError, proto.ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, proto.FromSnapshot(schools))
}

// WriteCandidates replaces one school's counts. A school may only write its
// own record.
// PUT /api/schools/:id/candidates
func (h *Handlers) WriteCandidates(c *gin.Context) {
	schoolID := c.Param("id")
	if c.GetString(ContextKeySchoolID) != schoolID {
		c.JSON(http.StatusForbidden, proto.ErrorResponse{Error: "cannot write another school"})
		return
	}

	var req proto.CandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid candidates request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.WriteCandidates(c.Request.Context(), schoolID, proto.ToCounts(req.Candidates)); err != nil {
		h.log.Warn().Err(err).Str("school_id", schoolID).Msg("candidate write rejected")
		c.JSON(http.StatusUnprocessableEntity, proto.ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// AppendMessage appends a chat message. The sender identity comes from the
// token, not the body, so a school can only speak as itself.
// POST /api/messages
func (h *Handlers) AppendMessage(c *gin.Context) {
	var req proto.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid message request")
		c.JSON(http.StatusBadRequest, proto.ErrorResponse{Error: "invalid request body"})
		return
	}

	id, err := h.store.AppendMessage(c.Request.Context(), core.Message{
		SchoolID:   c.GetString(ContextKeySchoolID),
		SchoolName: c.GetString(ContextKeySchoolName),
		Content:    req.Content,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("message append rejected")
		c.JSON(http.StatusUnprocessableEntity, proto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, proto.AppendMessageResponse{ID: id})
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
