package handler

import (
	"net/http"

	"nexchat/internal/media"
	"nexchat/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StatusHandler interface {
	CreateStatus(c *gin.Context)
	GetStatuses(c *gin.Context)
	ViewStatus(c *gin.Context)
	DeleteStatus(c *gin.Context)
}

type statusHandler struct {
	statuses service.StatusService
}

func NewStatusHandler(statuses service.StatusService) StatusHandler {
	return &statusHandler{statuses: statuses}
}

// CreateStatus accepts multipart form data: optional content and an
// optional image/video file. The post expires 24 hours after creation.
func (h *statusHandler) CreateStatus(c *gin.Context) {
	in := service.CreateStatusInput{
		OwnerID: currentUser(c),
		Content: c.PostForm("content"),
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

	status, err := h.statuses.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Status created successfully", status)
}

func (h *statusHandler) GetStatuses(c *gin.Context) {
	statuses, err := h.statuses.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Statuses retrieved successfully", statuses)
}

func (h *statusHandler) ViewStatus(c *gin.Context) {
	statusID, err := primitive.ObjectIDFromHex(c.Param("statusId"))
	if err != nil {
		respond(c, http.StatusBadRequest, "Invalid status id", nil)
		return
	}

	if err := h.statuses.View(c.Request.Context(), statusID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Status viewed successfully", nil)
}

func (h *statusHandler) DeleteStatus(c *gin.Context) {
	statusID, err := primitive.ObjectIDFromHex(c.Param("statusId"))
	if err != nil {
		respond(c, http.StatusBadRequest, "Invalid status id", nil)
		return
	}

	if err := h.statuses.Delete(c.Request.Context(), statusID, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, "Status deleted successfully", nil)
}
