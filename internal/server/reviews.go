package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reviewdomain "github.com/smallbiznis/servicehub/internal/review/domain"
)

func (s *Server) SubmitReview(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req reviewdomain.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	review, err := s.reviews.Submit(c.Request.Context(), actor.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": review})
}

// ListReviews lists reviews, optionally narrowed by ?provider_id.
func (s *Server) ListReviews(c *gin.Context) {
	page, ok := bindPagination(c)
	if !ok {
		return
	}

	req := reviewdomain.ListReviewRequest{Pagination: page}
	if raw := c.Query("provider_id"); raw != "" {
		providerID, err := parseSnowflakeID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("provider_id", "invalid_provider_id", "invalid provider_id"))
			return
		}
		req.ProviderID = providerID
	}

	resp, err := s.reviews.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	review, err := s.reviews.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": review})
}

func (s *Server) ProviderReviewStats(c *gin.Context) {
	providerID, ok := pathID(c, "providerId")
	if !ok {
		return
	}

	stats, err := s.reviews.ProviderStats(c.Request.Context(), providerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
