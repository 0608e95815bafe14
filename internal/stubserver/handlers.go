package stubserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/errors"
	"github.com/medisched/scheduling-client/pkg/httputil"
)

// Handler serves the stub clinic API.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/stats", h.Stats)
		appointments.GET("/conflicts", h.ConflictCheck)
		appointments.PATCH("/:id/status", h.UpdateStatus)
		appointments.PATCH("/:id/schedule", h.Reschedule)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
	r.GET("/availability", h.Availability)
	r.GET("/clinicians", h.ListClinicians)
	r.GET("/patients", h.ListPatients)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	filters := ListFilters{
		Status: model.BookingStatus(c.Query("status")),
		Type:   model.BookingType(c.Query("type")),
		Date:   c.Query("date"),
	}
	if id := c.Query("clinician_id"); id != "" {
		clinicianID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithAppError(c, errors.Validation(map[string]string{"clinician_id": "must be a UUID"}))
			return
		}
		filters.ClinicianID = clinicianID
	}

	items, total := h.store.List(filters, page, pageSize)
	if items == nil {
		items = []model.Booking{}
	}
	httputil.RespondWithList(c, items, page, pageSize, total)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var draft model.BookingDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"body": err.Error()}))
		return
	}

	booking, appErr := h.store.Create(&draft)
	if appErr != nil {
		httputil.RespondWithAppError(c, appErr)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, booking)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"id": "must be a UUID"}))
		return
	}

	var req struct {
		Status model.BookingStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"status": "is required"}))
		return
	}

	booking, appErr := h.store.UpdateStatus(id, req.Status)
	if appErr != nil {
		httputil.RespondWithAppError(c, appErr)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, booking)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"id": "must be a UUID"}))
		return
	}

	var req struct {
		Date            string `json:"date" binding:"required"`
		StartTime       string `json:"start_time" binding:"required"`
		DurationMinutes int    `json:"duration_minutes" binding:"required"`
		Force           bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"body": err.Error()}))
		return
	}

	booking, appErr := h.store.Reschedule(id, req.Date, req.StartTime, req.DurationMinutes, req.Force)
	if appErr != nil {
		httputil.RespondWithAppError(c, appErr)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, booking)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"id": "must be a UUID"}))
		return
	}
	if appErr := h.store.Delete(id); appErr != nil {
		httputil.RespondWithAppError(c, appErr)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) Stats(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, h.store.Stats())
}

func (h *Handler) ConflictCheck(c *gin.Context) {
	clinicianID, err := uuid.Parse(c.Query("clinician_id"))
	if err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"clinician_id": "must be a UUID"}))
		return
	}
	duration, _ := strconv.Atoi(c.Query("duration_minutes"))

	occupants := h.store.ConflictCheck(clinicianID, c.Query("date"), c.Query("start_time"), duration)
	if occupants == nil {
		occupants = []errors.Occupant{}
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{
		"has_conflicts": len(occupants) > 0,
		"conflicts":     occupants,
	})
}

func (h *Handler) Availability(c *gin.Context) {
	clinicianID, err := uuid.Parse(c.Query("clinician_id"))
	if err != nil {
		httputil.RespondWithAppError(c, errors.Validation(map[string]string{"clinician_id": "must be a UUID"}))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.store.Availability(clinicianID, c.Query("date")))
}

func (h *Handler) ListClinicians(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, h.store.Clinicians())
}

func (h *Handler) ListPatients(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, h.store.Patients())
}
