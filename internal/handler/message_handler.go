package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// MessageHandler exposes messaging and notification endpoints.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler constructs MessageHandler.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send godoc
// @Summary Send message
// @Description Sends to one admin, or to every other active admin when broadcast is true
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body service.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	sent, err := h.messages.Send(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sent)
}

// Inbox godoc
// @Summary List received messages
// @Tags Messages
// @Produce json
// @Param unread query bool false "Only unread messages"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /messages [get]
func (h *MessageHandler) Inbox(c *gin.Context) {
	h.list(c, models.BoxInbox)
}

// Sent godoc
// @Summary List sent messages
// @Tags Messages
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /messages/sent [get]
func (h *MessageHandler) Sent(c *gin.Context) {
	h.list(c, models.BoxSent)
}

func (h *MessageHandler) list(c *gin.Context, box models.MessageBox) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	unread := boolQuery(c, "unread")
	messages, pagination, err := h.messages.List(c.Request.Context(), principal, box, unread != nil && *unread, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, pagination)
}

// MarkRead godoc
// @Summary Mark message read
// @Tags Messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Router /messages/{id}/read [patch]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	message, err := h.messages.MarkRead(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, message, nil)
}

// Delete godoc
// @Summary Delete message
// @Tags Messages
// @Param id path string true "Message ID"
// @Success 204
// @Router /messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount godoc
// @Summary Unread notification count
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		return
	}
	count, err := h.messages.UnreadCount(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}
