package api

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every endpoint. rateLimiter guards booking and
// cancellation; pass nil to disable it.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	rateLimiter gin.HandlerFunc,
	authService service.AuthService,
	bookingService service.BookingService,
	checkInService service.CheckInService,
	memberService service.MemberService,
	exportService service.RosterExportService,
) {
	RegisterValidators()

	authHandler := NewAuthHandler(authService)
	bookingHandler := NewBookingHandler(bookingService, exportService)
	memberHandler := NewMemberHandler(memberService, checkInService)

	if rateLimiter == nil {
		rateLimiter = func(c *gin.Context) { c.Next() }
	}
	staffOnly := RoleMiddleware(domain.RoleStaff, domain.RoleAdmin)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			actor, err := getActorFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": actor.UserID.Hex(), "role": actor.Role})
		})

		gym := protected.Group("/gyms/:gymId")

		// --- Bookings ---
		gym.POST("/classes/:classId/bookings", rateLimiter, bookingHandler.BookSession)
		gym.POST("/classes/:classId/bookings/force", staffOnly, bookingHandler.ForceBooking)
		gym.POST("/attendance/:attendanceId/cancel", rateLimiter, bookingHandler.CancelBooking)

		// --- Front desk ---
		gym.POST("/attendance/:attendanceId/check-in", staffOnly, memberHandler.CheckIn)
		gym.GET("/members/search", staffOnly, memberHandler.SearchMembers)

		// --- Sessions ---
		session := gym.Group("/classes/:classId/sessions/:date")
		session.Use(staffOnly)
		{
			session.POST("/reconcile", bookingHandler.ReconcileWaitlist)
			session.GET("/roster", bookingHandler.GetSessionRoster)
			session.POST("/export", bookingHandler.ExportSessionRoster)
		}

		// --- History ---
		gym.GET("/members/:memberId/attendance", bookingHandler.GetMemberAttendance)
	}
}
