package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/ChanceW/WiseTowerBuilders/internal/domain"
	"github.com/ChanceW/WiseTowerBuilders/internal/models"
	"github.com/ChanceW/WiseTowerBuilders/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler holds the API handlers
type Handler struct {
	svc    service.Service
	logger *logrus.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, logger *logrus.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.POST("/auth/signup", h.SignUp)
	api.POST("/auth/login", h.Login)

	auth := api.Group("")
	auth.Use(AuthMiddleware())

	auth.PATCH("/user/profile", h.UpdateProfile)

	auth.POST("/groups", h.CreateGroup)
	auth.GET("/groups", h.ListGroups)
	auth.GET("/groups/:groupId", h.GetGroup)
	auth.PATCH("/groups/:groupId", h.RenameGroup)
	auth.POST("/groups/:groupId/leave", h.LeaveGroup)

	auth.GET("/invite/:code", h.LookupInvite)
	auth.POST("/invite/:code/accept", h.AcceptInvite)

	auth.POST("/studies", h.CreateStudyWithQuestions)
	auth.POST("/studies/generate", h.CreateStudyGenerated)
	auth.POST("/studies/:studyId/complete", h.CompleteStudy)

	auth.GET("/questions/:questionId/answers", h.ListAnswers)
	auth.POST("/questions/:questionId/answers", h.SubmitAnswer)
}

// Authentication handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.UpdateProfile(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Group handlers
func (h *Handler) CreateGroup(c *gin.Context) {
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.CreateGroup(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListGroups(c *gin.Context) {
	resp, err := h.svc.ListGroups(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetGroup(c *gin.Context) {
	resp, err := h.svc.GetGroup(c.Request.Context(), c.GetString("userId"), c.Param("groupId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RenameGroup(c *gin.Context) {
	var req models.RenameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.RenameGroup(c.Request.Context(), c.GetString("userId"), c.Param("groupId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) LeaveGroup(c *gin.Context) {
	// The body is optional; plain members leave without one. An empty body
	// binds as io.EOF, which covers requests without a declared length too.
	var req models.LeaveGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.LeaveGroup(c.Request.Context(), c.GetString("userId"), c.Param("groupId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Invite handlers
func (h *Handler) LookupInvite(c *gin.Context) {
	resp, err := h.svc.LookupInvite(c.Request.Context(), c.GetString("userId"), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AcceptInvite(c *gin.Context) {
	resp, err := h.svc.AcceptInvite(c.Request.Context(), c.GetString("userId"), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Study handlers
func (h *Handler) CreateStudyWithQuestions(c *gin.Context) {
	var req models.CreateStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.CreateStudyWithQuestions(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) CreateStudyGenerated(c *gin.Context) {
	var req models.GenerateStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.CreateStudyGenerated(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) CompleteStudy(c *gin.Context) {
	resp, err := h.svc.CompleteStudy(c.Request.Context(), c.GetString("userId"), c.Param("studyId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Answer handlers
func (h *Handler) ListAnswers(c *gin.Context) {
	resp, err := h.svc.ListAnswers(c.Request.Context(), c.GetString("userId"), c.Param("questionId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req models.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	resp, err := h.svc.SubmitAnswer(c.Request.Context(), c.GetString("userId"), c.Param("questionId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// writeBindError reports a request binding failure
func (h *Handler) writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
	})
}

// writeError maps a domain error kind to a status code. Untyped errors are
// logged and reported as a generic internal error; their text never reaches
// the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"

	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case domain.KindUnauthorized:
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case domain.KindForbidden:
		status, code = http.StatusForbidden, "FORBIDDEN"
	case domain.KindNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case domain.KindConflict:
		status, code = http.StatusConflict, "CONFLICT"
	case domain.KindGeneration:
		status, code = http.StatusBadGateway, "GENERATION_FAILED"
	}

	message := domain.MessageOf(err)
	if status == http.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("request failed")
		message = "An unexpected error occurred"
	} else if domain.KindOf(err) == domain.KindGeneration {
		// The underlying generator error is useful in logs but not to clients
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Warn("question generation failed")
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}
