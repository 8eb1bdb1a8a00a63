package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ki-backend/internal/services"
)

type DocumentHandler struct {
	documentService services.DocumentService
}

func NewDocumentHandler(documentService services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "Unauthorized")
	case err.Error() == "document not found":
		RespondError(c, http.StatusNotFound, "Document not found")
	case err.Error() == "capture not found":
		RespondError(c, http.StatusNotFound, "Capture not found")
	default:
		RespondError(c, http.StatusInternalServerError, err.Error())
	}
}

func (dh *DocumentHandler) Create(c *gin.Context) {
	var req struct {
		Title     string          `json:"title"`
		Content   json.RawMessage `json:"content"`
		CaptureID *string         `json:"captureId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	var captureID *uuid.UUID
	if req.CaptureID != nil && *req.CaptureID != "" {
		parsed, pErr := uuid.Parse(*req.CaptureID)
		if pErr != nil {
			RespondError(c, http.StatusBadRequest, "invalid capture id")
			return
		}
		captureID = &parsed
	}
	doc, err := dh.documentService.CreateDocument(c.Request.Context(), req.Title, req.Content, captureID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (dh *DocumentHandler) Get(c *gin.Context) {
	documentID, pErr := uuid.Parse(c.Param("id"))
	if pErr != nil {
		RespondError(c, http.StatusBadRequest, "invalid document id")
		return
	}
	doc, err := dh.documentService.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (dh *DocumentHandler) List(c *gin.Context) {
	docs, err := dh.documentService.ListDocuments(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (dh *DocumentHandler) Update(c *gin.Context) {
	documentID, pErr := uuid.Parse(c.Param("id"))
	if pErr != nil {
		RespondError(c, http.StatusBadRequest, "invalid document id")
		return
	}
	var req services.DocumentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := dh.documentService.UpdateDocument(c.Request.Context(), documentID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (dh *DocumentHandler) SetFocus(c *gin.Context) {
	documentID, pErr := uuid.Parse(c.Param("id"))
	if pErr != nil {
		RespondError(c, http.StatusBadRequest, "invalid document id")
		return
	}
	var req struct {
		IsFocused *bool `json:"is_focused"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsFocused == nil {
		RespondError(c, http.StatusBadRequest, "is_focused must be a boolean")
		return
	}
	doc, err := dh.documentService.SetFocus(c.Request.Context(), documentID, *req.IsFocused)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": doc})
}

func (dh *DocumentHandler) Delete(c *gin.Context) {
	documentID, pErr := uuid.Parse(c.Param("id"))
	if pErr != nil {
		RespondError(c, http.StatusBadRequest, "invalid document id")
		return
	}
	if err := dh.documentService.DeleteDocument(c.Request.Context(), documentID); err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": "true"})
}
