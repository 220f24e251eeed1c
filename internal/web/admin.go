package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/gin-gonic/gin"
)

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := s.Admins.Authenticate(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, internaltypes.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid username or password"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.Admins.SetSession(c.Writer, c.Request, a); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": a.ID, "username": a.Username})
}

func (s *Server) handleAdminLogout(c *gin.Context) {
	s.Admins.ClearSession(c.Writer)
	c.Status(http.StatusNoContent)
}
