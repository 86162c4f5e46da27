package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// authorize gates a route on the caller's role. Ownership of the target
// record is checked by the domain service behind the handler.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(
		c.Request.Context(),
		string(actor.Role),
		strings.TrimSpace(object),
		strings.TrimSpace(action),
	)
}
