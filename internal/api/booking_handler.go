package api

import (
	"alcyxob/gym-booking/internal/service"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingHandler struct {
	bookingService service.BookingService
	exportService  service.RosterExportService
}

func NewBookingHandler(bookingService service.BookingService, exportService service.RosterExportService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		exportService:  exportService,
	}
}

// --- DTOs ---

// BookSessionRequest selects a dated occurrence of a class. MemberID lets
// staff book on behalf of a member; members always book for themselves.
type BookSessionRequest struct {
	Date     string `json:"date" binding:"required,sessiondate"`
	Time     string `json:"time" binding:"omitempty,clocktime"`
	MemberID string `json:"memberId" binding:"omitempty,len=24,hexadecimal"`
}

// BookingResponse is the success envelope around a booking outcome.
type BookingResponse struct {
	Success bool `json:"success"`
	*service.BookingResult
}

// CancelResponse is the success envelope around a cancellation outcome.
type CancelResponse struct {
	Success bool `json:"success"`
	*service.CancelResult
}

type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// --- Handlers ---

// BookSession godoc
// @Summary Book a class session
// @Description Seats the member or places them on the waitlist. Rejections carry a code and reason.
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param gymId path string true "Gym ID"
// @Param classId path string true "Class ID"
// @Param booking body BookSessionRequest true "Session to book"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Not eligible"
// @Failure 409 {object} gin.H "Already booked"
// @Failure 503 {object} gin.H "Session busy, retry"
// @Router /gyms/{gymId}/classes/{classId}/bookings [post]
func (h *BookingHandler) BookSession(c *gin.Context) {
	req, ok := h.bindBooking(c)
	if !ok {
		return
	}
	actor, err := getActorFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	if req.MemberID.IsZero() {
		req.MemberID = actor.UserID
	} else if req.MemberID != actor.UserID && !actor.IsStaff() {
		abortWithError(c, http.StatusForbidden, "Members can only book for themselves")
		return
	}

	result, err := h.bookingService.AttemptBooking(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if result.Rejected() {
		respondRejection(c, result.Rejection)
		return
	}
	c.JSON(http.StatusCreated, BookingResponse{Success: true, BookingResult: result})
}

// ForceBooking godoc
// @Summary Add a member to a session regardless of capacity (staff)
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param gymId path string true "Gym ID"
// @Param classId path string true "Class ID"
// @Param booking body BookSessionRequest true "Session and member"
// @Success 201 {object} BookingResponse
// @Router /gyms/{gymId}/classes/{classId}/bookings/force [post]
func (h *BookingHandler) ForceBooking(c *gin.Context) {
	req, ok := h.bindBooking(c)
	if !ok {
		return
	}
	if req.MemberID.IsZero() {
		abortWithError(c, http.StatusBadRequest, "memberId is required")
		return
	}
	actor, err := getActorFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	result, err := h.bookingService.ForceBooking(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if result.Rejected() {
		respondRejection(c, result.Rejection)
		return
	}
	c.JSON(http.StatusCreated, BookingResponse{Success: true, BookingResult: result})
}

// CancelBooking godoc
// @Summary Cancel a booking or leave the waitlist
// @Description Cancelling a seat promotes the head of the waitlist.
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param gymId path string true "Gym ID"
// @Param attendanceId path string true "Attendance ID"
// @Success 200 {object} CancelResponse
// @Router /gyms/{gymId}/attendance/{attendanceId}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	gymID, ok := objectIDParam(c, "gymId")
	if !ok {
		return
	}
	attendanceID, ok := objectIDParam(c, "attendanceId")
	if !ok {
		return
	}
	actor, err := getActorFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	result, err := h.bookingService.CancelBooking(c.Request.Context(), actor, gymID, attendanceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, CancelResponse{Success: true, CancelResult: result})
}

// ReconcileWaitlist godoc
// @Summary Fill free seats of a session from its waitlist (staff)
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Router /gyms/{gymId}/classes/{classId}/sessions/{date}/reconcile [post]
func (h *BookingHandler) ReconcileWaitlist(c *gin.Context) {
	gymID, classID, ok := gymAndClass(c)
	if !ok {
		return
	}
	promoted, err := h.bookingService.ReconcileWaitlist(c.Request.Context(), gymID, classID, c.Param("date"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "promoted": promoted})
}

// GetSessionRoster godoc
// @Summary List the roster of a dated session (staff)
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} service.AttendancePage
// @Router /gyms/{gymId}/classes/{classId}/sessions/{date}/roster [get]
func (h *BookingHandler) GetSessionRoster(c *gin.Context) {
	gymID, classID, ok := gymAndClass(c)
	if !ok {
		return
	}
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	page, err := h.bookingService.ListSessionRoster(c.Request.Context(), gymID, classID, c.Param("date"), q.Page, q.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ExportSessionRoster godoc
// @Summary Export a session roster as CSV (staff)
// @Description Uploads the CSV to object storage and returns a presigned download URL.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 201 {object} service.RosterExport
// @Failure 503 {object} gin.H "Export storage not configured"
// @Router /gyms/{gymId}/classes/{classId}/sessions/{date}/export [post]
func (h *BookingHandler) ExportSessionRoster(c *gin.Context) {
	gymID, classID, ok := gymAndClass(c)
	if !ok {
		return
	}
	export, err := h.exportService.Export(c.Request.Context(), gymID, classID, c.Param("date"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	log.Printf("INFO: roster export %s created (%d rows)", export.ObjectKey, export.Rows)
	c.JSON(http.StatusCreated, export)
}

// GetMemberAttendance godoc
// @Summary List a member's attendance history
// @Description Members may only list their own history.
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.AttendancePage
// @Router /gyms/{gymId}/members/{memberId}/attendance [get]
func (h *BookingHandler) GetMemberAttendance(c *gin.Context) {
	gymID, ok := objectIDParam(c, "gymId")
	if !ok {
		return
	}
	memberID, ok := objectIDParam(c, "memberId")
	if !ok {
		return
	}
	actor, err := getActorFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	page, err := h.bookingService.ListMemberAttendance(c.Request.Context(), actor, gymID, memberID, q.Page, q.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// bindBooking reads path IDs and the JSON body into a service request.
func (h *BookingHandler) bindBooking(c *gin.Context) (service.BookingRequest, bool) {
	gymID, classID, ok := gymAndClass(c)
	if !ok {
		return service.BookingRequest{}, false
	}
	var body BookSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return service.BookingRequest{}, false
	}

	req := service.BookingRequest{GymID: gymID, ClassID: classID, Date: body.Date, Time: body.Time}
	if body.MemberID != "" {
		id, err := primitive.ObjectIDFromHex(body.MemberID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid memberId format")
			return service.BookingRequest{}, false
		}
		req.MemberID = id
	}
	return req, true
}

func gymAndClass(c *gin.Context) (gymID, classID primitive.ObjectID, ok bool) {
	if gymID, ok = objectIDParam(c, "gymId"); !ok {
		return
	}
	classID, ok = objectIDParam(c, "classId")
	return
}
