package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetProviderProfile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := s.stats.ProviderProfile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}
