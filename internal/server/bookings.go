package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/servicehub/internal/booking/domain"
)

type transitionBookingRequest struct {
	Status        string  `json:"status"`
	ProviderNotes *string `json:"provider_notes"`
}

func (s *Server) CreateBooking(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req bookingdomain.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookings.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": booking})
}

func (s *Server) ListBookings(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	page, ok := bindPagination(c)
	if !ok {
		return
	}

	resp, err := s.bookings.List(c.Request.Context(), bookingdomain.ListBookingRequest{
		UserID:     actor.ID,
		Role:       actor.Role,
		Status:     strings.TrimSpace(c.Query("status")),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBooking(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.GetByID(c.Request.Context(), id, actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) TransitionBooking(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transitionBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.bookings.Transition(c.Request.Context(), bookingdomain.TransitionRequest{
		BookingID: id,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Status:    strings.TrimSpace(req.Status),
		Notes:     req.ProviderNotes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) CancelBooking(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := s.bookings.Cancel(c.Request.Context(), id, actor.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) BookingStats(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	stats, err := s.stats.BookingStats(c.Request.Context(), actor.ID, actor.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
