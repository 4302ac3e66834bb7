package quizapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/repository"
	"github.com/mkravets/safedesk/internal/service"
	"go.uber.org/zap"
)

// Handler handles quiz API requests
type Handler struct {
	quizService *service.QuizService
	users       *repository.UserRepository
	logger      *zap.Logger
}

// NewHandler creates a new quiz handler
func NewHandler(quizService *service.QuizService, users *repository.UserRepository, logger *zap.Logger) *Handler {
	return &Handler{quizService: quizService, users: users, logger: logger}
}

// RegisterRoutes registers quiz routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/start", h.Start)
	r.POST("/answer", h.Answer)
	r.GET("/current", h.Current)
	r.POST("/finish", h.Finish)
}

// questionView is the question as shown to the user. The correct index and
// explanation stay server-side until the answer is graded.
type questionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func viewOf(q *domain.QuizQuestion) questionView {
	return questionView{Question: q.Question, Options: q.Options}
}

type startRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type answerRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Choice *int  `json:"choice" binding:"required"`
}

// resolveActiveUser loads the user and rejects anyone mid-registration.
func (h *Handler) resolveActiveUser(c *gin.Context, externalID int64) *domain.User {
	user, err := h.users.GetOrCreate(externalID, "")
	if err != nil {
		h.logger.Error("Failed to resolve user", zap.Int64("external_id", externalID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return nil
	}
	if !user.IsActive() {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration required", "registration_state": user.State})
		return nil
	}
	return user
}

// Start begins a quiz and returns the first question.
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := h.resolveActiveUser(c, req.UserID)
	if user == nil {
		return
	}

	question, err := h.quizService.Start(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": viewOf(question)})
}

// Answer grades the chosen option and returns the result plus the next
// question when one could be generated.
func (h *Handler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := h.resolveActiveUser(c, req.UserID)
	if user == nil {
		return
	}

	outcome, err := h.quizService.Answer(c.Request.Context(), user, *req.Choice)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoActiveSession):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active quiz"})
		case errors.Is(err, domain.ErrAnswerOutOfRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	body := gin.H{"result": outcome.Result}
	if outcome.NextQuestion != nil {
		body["next_question"] = viewOf(outcome.NextQuestion)
	}
	c.JSON(http.StatusOK, body)
}

// Current returns the pending question and the running score.
func (h *Handler) Current(c *gin.Context) {
	externalID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || externalID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	user := h.resolveActiveUser(c, externalID)
	if user == nil {
		return
	}

	session, err := h.quizService.Current(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active quiz"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": questionView{Question: session.Question, Options: session.Options},
		"score": domain.QuizSummary{
			QuestionsAnswered: session.QuestionsAnswered,
			CorrectAnswers:    session.CorrectAnswers,
		},
	})
}

// Finish ends the quiz and returns the final score.
func (h *Handler) Finish(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := h.resolveActiveUser(c, req.UserID)
	if user == nil {
		return
	}

	summary, err := h.quizService.Finish(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"score": summary})
}
