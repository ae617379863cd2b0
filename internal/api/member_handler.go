package api

import (
	"alcyxob/gym-booking/internal/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemberHandler struct {
	memberService  service.MemberService
	checkInService service.CheckInService
}

func NewMemberHandler(memberService service.MemberService, checkInService service.CheckInService) *MemberHandler {
	return &MemberHandler{
		memberService:  memberService,
		checkInService: checkInService,
	}
}

type CheckInRequest struct {
	MemberID  string `json:"memberId" binding:"required,len=24,hexadecimal"`
	ProgramID string `json:"programId"`
}

type SearchMembersQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

// CheckIn godoc
// @Summary Check a member in to a booked session (staff)
// @Description Marks the booking attended and credits the member's program progression.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param gymId path string true "Gym ID"
// @Param attendanceId path string true "Attendance ID"
// @Param checkIn body CheckInRequest true "Member and optional program"
// @Success 200 {object} gin.H
// @Failure 409 {object} gin.H "Already checked in or not booked"
// @Router /gyms/{gymId}/attendance/{attendanceId}/check-in [post]
func (h *MemberHandler) CheckIn(c *gin.Context) {
	gymID, ok := objectIDParam(c, "gymId")
	if !ok {
		return
	}
	attendanceID, ok := objectIDParam(c, "attendanceId")
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	memberID, err := primitive.ObjectIDFromHex(req.MemberID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid memberId format")
		return
	}

	if err := h.checkInService.CheckIn(c.Request.Context(), gymID, attendanceID, memberID, req.ProgramID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attendanceId": attendanceID.Hex()})
}

// SearchMembers godoc
// @Summary Search members of a gym by name or email (staff)
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param q query string true "At least 2 characters"
// @Param limit query int false "Max results (default 20, max 50)"
// @Success 200 {array} UserResponse
// @Router /gyms/{gymId}/members/search [get]
func (h *MemberHandler) SearchMembers(c *gin.Context) {
	gymID, ok := objectIDParam(c, "gymId")
	if !ok {
		return
	}
	var q SearchMembersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	users, err := h.memberService.Search(c.Request.Context(), gymID, q.Q, q.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, MapUserToResponse(&users[i]))
	}
	c.JSON(http.StatusOK, resp)
}
