package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/servicehub/internal/catalog/domain"
)

func (s *Server) ListServices(c *gin.Context) {
	page, ok := bindPagination(c)
	if !ok {
		return
	}

	minRate, err := parseOptionalFloat(c.Query("min_rate"))
	if err != nil {
		AbortWithError(c, newValidationError("min_rate", "invalid_min_rate", "invalid min_rate"))
		return
	}
	maxRate, err := parseOptionalFloat(c.Query("max_rate"))
	if err != nil {
		AbortWithError(c, newValidationError("max_rate", "invalid_max_rate", "invalid max_rate"))
		return
	}

	resp, err := s.catalog.List(c.Request.Context(), catalogdomain.ListListingRequest{
		Search:     strings.TrimSpace(c.Query("search")),
		Category:   strings.TrimSpace(c.Query("category")),
		MinRate:    minRate,
		MaxRate:    maxRate,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	listing, err := s.catalog.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listing})
}

func (s *Server) ListMyServices(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	page, ok := bindPagination(c)
	if !ok {
		return
	}

	resp, err := s.catalog.ListByProvider(c.Request.Context(), actor.ID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateService(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req catalogdomain.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	listing, err := s.catalog.Create(c.Request.Context(), actor.ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": listing})
}

func (s *Server) UpdateService(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req catalogdomain.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	listing, err := s.catalog.Update(c.Request.Context(), actor.ID, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listing})
}

// ArchiveService answers DELETE by deactivating the listing.
func (s *Server) ArchiveService(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.catalog.Archive(c.Request.Context(), actor.ID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "is_active": false}})
}
