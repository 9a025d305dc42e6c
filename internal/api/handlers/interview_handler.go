package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingualab/oralis/internal/exam"
	"github.com/lingualab/oralis/internal/models"
	"github.com/lingualab/oralis/internal/services"
	"github.com/lingualab/oralis/internal/utils"
)

type InterviewHandler struct {
	svc *services.InterviewService
}

func NewInterviewHandler(svc *services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type StartInterviewRequest struct {
	TestID string `json:"test_id" binding:"required"`
}

type StartInterviewResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (h *InterviewHandler) Start(c *gin.Context) {
	candidateID, ok := requireCandidateID(c)
	if !ok {
		return
	}

	var req StartInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Start", "invalid request body", err))
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), candidateID, req.TestID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StartInterviewResponse{
		SessionID: sess.SessionID,
		Status:    sess.Status,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

type GetInterviewResponse struct {
	Session *models.InterviewSession `json:"session"`
	Live    *exam.Snapshot           `json:"live,omitempty"`
}

func (h *InterviewHandler) Get(c *gin.Context) {
	candidateID, ok := requireCandidateID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, snap, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.CandidateID != candidateID {
		writeError(c, utils.E(utils.CodeForbidden, "InterviewHandler.Get", "forbidden", nil))
		return
	}

	c.JSON(http.StatusOK, GetInterviewResponse{Session: sess, Live: snap})
}

func (h *InterviewHandler) End(c *gin.Context) {
	candidateID, ok := requireCandidateID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, _, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.CandidateID != candidateID {
		writeError(c, utils.E(utils.CodeForbidden, "InterviewHandler.End", "forbidden", nil))
		return
	}

	if err := h.svc.End(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "status": "ending"})
}

func (h *InterviewHandler) Report(c *gin.Context) {
	candidateID, ok := requireCandidateID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, _, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.CandidateID != candidateID {
		writeError(c, utils.E(utils.CodeForbidden, "InterviewHandler.Report", "forbidden", nil))
		return
	}

	result, err := h.svc.Report(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Recording streams one finalized clip back to the candidate while the
// session is live, and redirects to a signed archive URL once it is not.
func (h *InterviewHandler) Recording(c *gin.Context) {
	candidateID, ok := requireCandidateID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, _, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.CandidateID != candidateID {
		writeError(c, utils.E(utils.CodeForbidden, "InterviewHandler.Recording", "forbidden", nil))
		return
	}

	label := c.Query("label")
	if label == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Recording", "label query parameter is required", nil))
		return
	}

	clip, url, err := h.svc.Recording(c.Request.Context(), sessionID, label)
	if err != nil {
		writeError(c, err)
		return
	}
	if url != "" {
		c.Redirect(http.StatusFound, url)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+clip.Label+`"`)
	c.Data(http.StatusOK, clip.MIME, clip.Data)
}
