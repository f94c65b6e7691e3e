package handler

import (
	"net/http"

	"nexchat/internal/media"
	"nexchat/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatHandler interface {
	SendMessage(c *gin.Context)
	GetConversations(c *gin.Context)
	GetMessages(c *gin.Context)
	MarkRead(c *gin.Context)
	DeleteMessage(c *gin.Context)
}

type chatHandler struct {
	chat service.ChatService
}

func NewChatHandler(chat service.ChatService) ChatHandler {
	return &chatHandler{chat: chat}
}

// SendMessage accepts multipart form data: receiverId, optional content
// and an optional image/video file.
func (h *chatHandler) SendMessage(c *gin.Context) {
	receiverID, err := primitive.ObjectIDFromHex(c.PostForm("receiverId"))
	if err != nil {
		respond(c, http.StatusBadRequest, "Invalid receiverId", nil)
		return
	}

	in := service.SendMessageInput{
		SenderID:   currentUser(c),
		ReceiverID: receiverID,
		Content:    c.PostForm("content"),
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			respond(c, http.StatusBadRequest, "Failed to read uploaded file", nil)
			return
		}
		defer file.Close()

		in.File = &media.File{
			Name:        fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Reader:      file,
		}
	}

	message, err := h.chat.SendMessage(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Message sent successfully", message)
}

func (h *chatHandler) GetConversations(c *gin.Context) {
	conversations, err := h.chat.GetConversations(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Conversations fetched successfully", conversations)
}

// GetMessages returns a conversation's history and, as a side effect,
// marks everything addressed to the caller as read.
func (h *chatHandler) GetMessages(c *gin.Context) {
	conversationID, err := primitive.ObjectIDFromHex(c.Param("conversationId"))
	if err != nil {
		respond(c, http.StatusBadRequest, "Invalid conversation id", nil)
		return
	}

	messages, err := h.chat.GetMessages(c.Request.Context(), conversationID, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Messages fetched successfully", messages)
}

type markReadRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required"`
}

func (h *chatHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "messageIds is required", nil)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			respond(c, http.StatusBadRequest, "Invalid message id: "+raw, nil)
			return
		}
		ids = append(ids, id)
	}

	messages, err := h.chat.MarkRead(c.Request.Context(), ids, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Messages marked as read successfully", messages)
}

func (h *chatHandler) DeleteMessage(c *gin.Context) {
	messageID, err := primitive.ObjectIDFromHex(c.Param("messageId"))
	if err != nil {
		respond(c, http.StatusBadRequest, "Invalid message id", nil)
		return
	}

	if err := h.chat.DeleteMessage(c.Request.Context(), messageID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Message deleted successfully", nil)
}
