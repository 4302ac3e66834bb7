package chat

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/repository"
	"github.com/mkravets/safedesk/internal/service"
	"go.uber.org/zap"
)

// Handler handles chat API requests
type Handler struct {
	chatService *service.ChatService
	users       *repository.UserRepository
	uploadDir   string
	logger      *zap.Logger
}

// NewHandler creates a new chat handler
func NewHandler(chatService *service.ChatService, users *repository.UserRepository, uploadDir string, logger *zap.Logger) *Handler {
	return &Handler{
		chatService: chatService,
		users:       users,
		uploadDir:   uploadDir,
		logger:      logger,
	}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Chat)
	r.POST("/image", h.ChatImage)
	r.POST("/voice", h.ChatVoice)
	r.POST("/reset", h.Reset)
}

type chatRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username"`
	Message  string `json:"message" binding:"required"`
}

type resetRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// resolveUser looks up (or creates) the user behind the external id.
func (h *Handler) resolveUser(c *gin.Context, externalID int64, username string) *domain.User {
	user, err := h.users.GetOrCreate(externalID, username)
	if err != nil {
		h.logger.Error("Failed to resolve user", zap.Int64("external_id", externalID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return nil
	}
	return user
}

// Chat answers a text question. Users who have not finished registration get
// the next registration prompt instead of an answer.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := h.resolveUser(c, req.UserID, req.Username)
	if user == nil {
		return
	}

	if !user.IsActive() {
		reply, err := h.chatService.RegistrationStep(user, req.Message)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"answer": reply, "registration_state": user.State})
		return
	}

	resp, err := h.chatService.AnswerText(c.Request.Context(), conversationID(user), user, req.Message)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatImage answers a photo question. The image arrives as a multipart file
// with an optional caption field.
func (h *Handler) ChatImage(c *gin.Context) {
	user, ok := h.multipartUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	path, err := h.saveUpload(c, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}
	defer h.removeUpload(path)

	resp, err := h.chatService.AnswerImage(c.Request.Context(), conversationID(user), user, path, c.PostForm("caption"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatVoice transcribes an uploaded voice recording and answers the
// transcript like a text question. The transcript is echoed back so the
// client can show what was heard.
func (h *Handler) ChatVoice(c *gin.Context) {
	user, ok := h.multipartUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	path, err := h.saveUpload(c, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}
	// TranscribeVoice removes the upload and the intermediate WAV itself.

	result, err := h.chatService.TranscribeVoice(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyTranscript) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "could not recognize any speech"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.AnswerText(c.Request.Context(), conversationID(user), user, result.Text)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transcript": result.Text,
		"language":   result.Language,
		"answer":     resp.Answer,
		"sources":    resp.Sources,
	})
}

// Reset clears the user's conversation history.
func (h *Handler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := h.resolveUser(c, req.UserID, "")
	if user == nil {
		return
	}

	h.chatService.ResetConversation(conversationID(user))
	c.JSON(http.StatusOK, gin.H{"message": "conversation reset"})
}

// multipartUser resolves the user from a multipart form's user_id field and
// rejects users who have not finished registration.
func (h *Handler) multipartUser(c *gin.Context) (*domain.User, bool) {
	var externalID int64
	if _, err := fmt.Sscan(c.PostForm("user_id"), &externalID); err != nil || externalID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return nil, false
	}

	user := h.resolveUser(c, externalID, c.PostForm("username"))
	if user == nil {
		return nil, false
	}
	if !user.IsActive() {
		c.JSON(http.StatusForbidden, gin.H{"error": "registration required", "registration_state": user.State})
		return nil, false
	}
	return user, true
}

func (h *Handler) saveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(h.uploadDir, "upload-*"+filepath.Ext(file.Filename))
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	tmp.Close()
	if err := c.SaveUploadedFile(file, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (h *Handler) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("Failed to remove upload", zap.String("path", path), zap.Error(err))
	}
}

// conversationID keys history and locking by the internal user id.
func conversationID(user *domain.User) string {
	return fmt.Sprintf("user-%d", user.ID)
}
