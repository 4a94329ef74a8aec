// Admin HTTP handlers.
//
// This file exposes the operator-facing REST endpoints:
//   - GET    /admin/conversations                       (list, paginated)
//   - GET    /admin/conversations/{id}/messages         (list, paginated)
//   - GET    /admin/conversations/{id}/summary          (per-conversation traffic)
//   - POST   /admin/conversations/{id}/handover         (hand over to a human)
//   - GET    /admin/messages/{id}/delivery-events       (delivery audit trail)
//   - GET    /admin/outbound/summary                    (fleet-wide delivery summary)
//   - POST   /admin/delivery/run                        (trigger a delivery pass)
//   - GET    /admin/contacts                            (list, paginated)
//   - POST   /admin/contacts                            (opt a number in)
//   - DELETE /admin/contacts/{number}                   (opt a number out)
//
// Handlers are transport-thin: validate inputs, delegate to services or repo
// queries, and translate errors into the standard envelope.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/repo"
	"github.com/klresolute/whatsapp-backend/internal/services"
	"github.com/klresolute/whatsapp-backend/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListMessagesResponse wraps a page of a conversation's messages.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// ListContactsResponse wraps a page of contacts.
type ListContactsResponse struct {
	Contacts   []domain.Contact `json:"contacts"`
	Pagination Pagination       `json:"pagination"`
}

// ListDeliveryEventsResponse wraps the audit trail of one outbound message.
type ListDeliveryEventsResponse struct {
	Events []domain.DeliveryEvent `json:"events"`
}

// AddContactRequest is the JSON payload for opting a number in.
type AddContactRequest struct {
	// Number is the contact phone number in E.164 form.
	Number string `json:"number" binding:"required,min=1" example:"27831234567"`
}

// RunDeliveryResponse reports the outcome of a manual delivery pass.
type RunDeliveryResponse struct {
	Attempts int `json:"attempts"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func paginationMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// AdminHandlers bundles the dependencies of the admin endpoints.
type AdminHandlers struct {
	DB       *gorm.DB
	Delivery *services.DeliveryService
}

// NewAdminHandlers constructs the admin handler set.
func NewAdminHandlers(db *gorm.DB, delivery *services.DeliveryService) *AdminHandlers {
	return &AdminHandlers{DB: db, Delivery: delivery}
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Tags        Admin
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/conversations [get]
func (h *AdminHandlers) ListConversations(c *gin.Context) {
	page, pageSize := clampPagination(c)

	total, err := repo.CountConversations(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}
	items, err := repo.ListConversationsPage(c.Request.Context(), h.DB, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}

	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    paginationMeta(page, pageSize, total),
	})
}

// ListConversationMessages godoc
// @ID          listConversationMessages
// @Summary     List a conversation's messages (paginated)
// @Tags        Admin
// @Produce     json
//
// @Param       id         path   string true  "Conversation ID"
// @Param       page       query  int    false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int    false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/conversations/{id}/messages [get]
func (h *AdminHandlers) ListConversationMessages(c *gin.Context) {
	id := c.Param("id")
	if _, err := repo.GetConversation(c.Request.Context(), h.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load conversation")
		return
	}

	page, pageSize := clampPagination(c)
	total, err := repo.CountMessages(c.Request.Context(), h.DB, id, "")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages")
		return
	}
	items, err := repo.ListMessagesPage(c.Request.Context(), h.DB, id, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list messages")
		return
	}

	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// GetConversationSummary godoc
// @ID          getConversationSummary
// @Summary     Per-conversation traffic summary
// @Tags        Admin
// @Produce     json
//
// @Param       id  path  string  true  "Conversation ID"
//
// @Success     200  {object} repo.ConversationSummary
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/conversations/{id}/summary [get]
func (h *AdminHandlers) GetConversationSummary(c *gin.Context) {
	summary, err := repo.GetConversationSummary(c.Request.Context(), h.DB, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute summary")
		return
	}
	ok(c, http.StatusOK, summary)
}

// HandOverConversation godoc
// @ID          handOverConversation
// @Summary     Hand a conversation over to a human
// @Description After handover the bot never replies in this conversation again.
// @Tags        Admin
// @Produce     json
//
// @Param       id  path  string  true  "Conversation ID"
//
// @Success     200  {object} domain.Conversation
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/conversations/{id}/handover [post]
func (h *AdminHandlers) HandOverConversation(c *gin.Context) {
	conv, err := services.HandOverConversation(c.Request.Context(), h.DB, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeHandoverFailed, "could not hand over conversation")
		return
	}
	ok(c, http.StatusOK, conv)
}

// ListDeliveryEvents godoc
// @ID          listDeliveryEvents
// @Summary     Delivery audit trail for an outbound message
// @Tags        Admin
// @Produce     json
//
// @Param       id  path  string  true  "Message ID"
//
// @Success     200  {object} handlers.ListDeliveryEventsResponse
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/messages/{id}/delivery-events [get]
func (h *AdminHandlers) ListDeliveryEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := repo.GetMessage(c.Request.Context(), h.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load message")
		return
	}

	events, err := repo.ListDeliveryEvents(c.Request.Context(), h.DB, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list delivery events")
		return
	}
	ok(c, http.StatusOK, ListDeliveryEventsResponse{Events: events})
}

// GetOutboundSummary godoc
// @ID          getOutboundSummary
// @Summary     Fleet-wide outbound delivery summary
// @Tags        Admin
// @Produce     json
//
// @Success     200  {object} repo.OutboundSummary
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/outbound/summary [get]
func (h *AdminHandlers) GetOutboundSummary(c *gin.Context) {
	summary, err := repo.GetOutboundSummary(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute summary")
		return
	}
	ok(c, http.StatusOK, summary)
}

// RunDelivery godoc
// @ID          runDelivery
// @Summary     Trigger a delivery pass
// @Description Runs one pass of the delivery engine over all outbound drafts.
// @Tags        Admin
// @Produce     json
//
// @Success     200  {object} handlers.RunDeliveryResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/delivery/run [post]
func (h *AdminHandlers) RunDelivery(c *gin.Context) {
	attempts, err := h.Delivery.RunDelivery(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeliveryFailed, "delivery pass failed")
		return
	}
	ok(c, http.StatusOK, RunDeliveryResponse{Attempts: attempts})
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List contacts (paginated)
// @Tags        Admin
// @Produce     json
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListContactsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/contacts [get]
func (h *AdminHandlers) ListContacts(c *gin.Context) {
	page, pageSize := clampPagination(c)

	total, err := repo.CountContacts(c.Request.Context(), h.DB)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list contacts")
		return
	}
	items, err := repo.ListContactsPage(c.Request.Context(), h.DB, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list contacts")
		return
	}

	ok(c, http.StatusOK, ListContactsResponse{
		Contacts:   items,
		Pagination: paginationMeta(page, pageSize, total),
	})
}

// AddContact godoc
// @ID          addContact
// @Summary     Opt a phone number in
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AddContactRequest  true  "Contact payload"
//
// @Success     201  {object} domain.Contact
// @Success     200  {object} domain.Contact "Already opted in"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/contacts [post]
func (h *AdminHandlers) AddContact(c *gin.Context) {
	var req AddContactRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Number) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "number is required")
		return
	}

	contact, created, err := services.AddContact(c.Request.Context(), h.DB, req.Number)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not add contact")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, contact)
}

// RemoveContact godoc
// @ID          removeContact
// @Summary     Opt a phone number out
// @Tags        Admin
// @Produce     json
//
// @Param       number  path  string  true  "Contact phone number"
//
// @Success     204  {string} string "Removed"
// @Failure     404  {object} handlers.ErrorResponse "Contact not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/contacts/{number} [delete]
func (h *AdminHandlers) RemoveContact(c *gin.Context) {
	removed, err := services.RemoveContact(c.Request.Context(), h.DB, c.Param("number"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "number is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not remove contact")
		return
	}
	if !removed {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "contact not found")
		return
	}
	noContent(c)
}
