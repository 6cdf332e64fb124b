package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"herdmind/services"
)

type SessionHandler struct {
	sessionService *services.SessionService
}

func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// statusForError maps the service error taxonomy to HTTP statuses:
// validation 400, capacity 422, not-found 404, state-conflict 409.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInsufficientQuestions):
		return http.StatusUnprocessableEntity
	case services.IsValidation(err):
		return http.StatusBadRequest
	case services.IsNotFound(err):
		return http.StatusNotFound
	case services.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessionService.CreateSession(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *SessionHandler) FetchSession(c *gin.Context) {
	identifier := c.Param("identifier")

	snapshot, err := h.sessionService.FetchSession(identifier)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	snapshot, err := h.sessionService.StartSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req services.JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participantID, err := h.sessionService.JoinSession(c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"participant_id": participantID})
}

func (h *SessionHandler) CreateInvitation(c *gin.Context) {
	var req services.InvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invitation, err := h.sessionService.CreateInvitation(c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

func (h *SessionHandler) RemindInvitation(c *gin.Context) {
	invitation, err := h.sessionService.RemindInvitation(c.Param("inviteId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (h *SessionHandler) RecordResponse(c *gin.Context) {
	var req services.ResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.sessionService.RecordResponse(c.Param("id"), c.Param("roundId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *SessionHandler) FinalizeRound(c *gin.Context) {
	snapshot, err := h.sessionService.FinalizeRound(c.Param("id"), c.Param("roundId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *SessionHandler) AdvanceSession(c *gin.Context) {
	snapshot, err := h.sessionService.AdvanceSession(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
