// Package handler exposes the sequence module over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/automation"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/lifecycle"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/repository"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/taskstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/transport"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/apperr"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/httpkit"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/phone"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the sequence module.
type Handler struct {
	repo    *repository.Repository
	machine *lifecycle.Machine
	tasks   *taskstore.Store
	engine  *automation.Engine
	val     *validator.Validator
	log     *logger.Logger
}

// New creates a new sequence handler.
func New(repo *repository.Repository, machine *lifecycle.Machine, tasks *taskstore.Store, engine *automation.Engine, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, machine: machine, tasks: tasks, engine: engine, val: val, log: log}
}

// RegisterRoutes registers the contact-facing sequence routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateContact)
	rg.GET("/:id", h.GetContact)
	rg.POST("/:id/enter", h.EnterSequence)
	rg.POST("/:id/tasks/action", h.ActionTask)
	rg.GET("/:id/tasks", h.ListTasks)
	rg.GET("/:id/tasks/overdue", h.ListOverdueTasks)
	rg.POST("/:id/pause", h.Pause)
	rg.POST("/:id/resume", h.Resume)
	rg.POST("/:id/dead", h.MarkDead)
	rg.POST("/:id/convert", h.Convert)
}

// RegisterAdminRoutes registers the out-of-band repair routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/deduplicate", h.Deduplicate)
	rg.POST("/backfill", h.Backfill)
	rg.POST("/sweep", h.Sweep)
}

func contactID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id")
		return uuid.UUID{}, false
	}
	return id, true
}

// CreateContact handles POST /api/v1/contacts
func (h *Handler) CreateContact(c *gin.Context) {
	var req transport.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
		return
	}

	now := time.Now().UTC()
	contact := domain.Contact{
		ID:             uuid.New(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Company:        req.Company,
		Phone:          phone.NormalizeE164(req.Phone),
		Email:          req.Email,
		SequenceStatus: domain.StatusNeverContacted,
		ChannelFlags: domain.ChannelFlags{
			HasEmail:       req.HasEmail,
			HasLinkedIn:    req.HasLinkedIn,
			HasSocialMedia: req.HasSocialMedia,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if contact.Email == "" {
		contact.HasEmail = false
	}

	if err := h.repo.SaveContact(c.Request.Context(), contact); err != nil {
		httpkit.HandleError(c, apperr.NotSaved("handler.CreateContact", err))
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToContactResponse(contact))
}

// GetContact handles GET /api/v1/contacts/:id
func (h *Handler) GetContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	contact, err := h.repo.GetContact(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToContactResponse(contact))
}

// EnterSequence handles POST /api/v1/contacts/:id/enter, the external
// trigger fired when a cold call completes.
func (h *Handler) EnterSequence(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	contact, err := h.machine.Enter(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToContactResponse(contact))
}

// ActionTask handles POST /api/v1/contacts/:id/tasks/action, the external
// trigger from the checklist. After a touch resolves, advancement is
// attempted immediately so the contact never waits for the next sweep.
func (h *Handler) ActionTask(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req transport.TaskActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
		return
	}

	ctx := c.Request.Context()
	taskType := domain.TaskType(req.TaskType)

	var (
		contact domain.Contact
		err     error
	)
	if req.Action == "complete" {
		contact, err = h.machine.RecordTouch(ctx, id, req.Day, taskType, req.Notes, req.LeftVoicemail)
	} else {
		contact, err = h.machine.SkipTouch(ctx, id, req.Day, taskType, req.Notes)
	}
	if httpkit.HandleError(c, err) {
		return
	}

	// Advancement after a touch is best effort; the touch itself is
	// already saved and the next sweep will retry.
	if contact.SequenceStatus == domain.StatusActive {
		if updated, _, advErr := h.machine.Advance(ctx, id); advErr == nil {
			contact = updated
		} else {
			h.log.WithContactID(id.String()).Error("post-action advance failed", "error", advErr)
		}
	}

	httpkit.OK(c, transport.ToContactResponse(contact))
}

// ListTasks handles GET /api/v1/contacts/:id/tasks?mode=today|all
func (h *Handler) ListTasks(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req transport.ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	mode := taskstore.Mode(req.Mode)
	if mode == "" {
		mode = taskstore.ModeToday
	}

	tasks, err := h.tasks.VisibleTasks(c.Request.Context(), id, mode)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToTaskResponses(tasks))
}

// ListOverdueTasks handles GET /api/v1/contacts/:id/tasks/overdue
func (h *Handler) ListOverdueTasks(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	tasks, err := h.tasks.OverdueTasks(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToTaskResponses(tasks))
}

// Pause handles POST /api/v1/contacts/:id/pause
func (h *Handler) Pause(c *gin.Context) {
	h.transition(c, h.machine.Pause)
}

// Resume handles POST /api/v1/contacts/:id/resume
func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, h.machine.Resume)
}

// Convert handles POST /api/v1/contacts/:id/convert
func (h *Handler) Convert(c *gin.Context) {
	h.transition(c, h.machine.ConvertToClient)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (domain.Contact, error)) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	contact, err := fn(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToContactResponse(contact))
}

// MarkDead handles POST /api/v1/contacts/:id/dead
func (h *Handler) MarkDead(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req transport.MarkDeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
		return
	}

	contact, err := h.machine.MarkDead(c.Request.Context(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToContactResponse(contact))
}

// Deduplicate handles POST /api/v1/admin/sequence/deduplicate
func (h *Handler) Deduplicate(c *gin.Context) {
	removed, err := h.tasks.Deduplicate(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RepairResponse{TasksRemoved: removed})
}

// Backfill handles POST /api/v1/admin/sequence/backfill
func (h *Handler) Backfill(c *gin.Context) {
	ctx := c.Request.Context()
	contacts, err := h.repo.ListContacts(ctx)
	if httpkit.HandleError(c, err) {
		return
	}

	added, err := h.tasks.Backfill(ctx, contacts)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RepairResponse{TasksAdded: added})
}

// Sweep handles POST /api/v1/admin/sequence/sweep. It runs the automation
// pass immediately instead of waiting for the scheduler.
func (h *Handler) Sweep(c *gin.Context) {
	report, err := h.engine.Sweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}
