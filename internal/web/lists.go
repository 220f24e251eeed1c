package web

import (
	"net/http"
	"strconv"

	"github.com/example/laundry-storefront/internal/listing"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleReviews(c *gin.Context) {
	s.reviews(c, c.Param("storeId"))
}

func (s *Server) handleAdminReviews(c *gin.Context) {
	storeID := c.Query("storeId")
	if storeID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "storeId is required"})
		return
	}
	s.reviews(c, storeID)
}

func (s *Server) reviews(c *gin.Context, storeID string) {
	key, err := listing.ParseReviewSort(c.Query("sort"))
	if err != nil {
		badRequest(c, err)
		return
	}
	rows, err := s.Lists.ListReviews(c.Request.Context(), s.optionalSession(c), storeID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing.SortReviews(rows, key))
}

func (s *Server) handleNotices(c *gin.Context) {
	key, err := listing.ParseNoticeSort(c.Query("sort"))
	if err != nil {
		badRequest(c, err)
		return
	}
	rows, err := s.Lists.ListNotices(c.Request.Context(), s.optionalSession(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing.SortNotices(rows, key))
}

func (s *Server) handleSubmissions(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	rows, err := s.Submissions.ListByUser(c.Request.Context(), sessionFrom(c).UserID, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
