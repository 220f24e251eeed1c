package web

import (
	"errors"
	"net/http"

	"github.com/example/laundry-storefront/internal/backend"
	"github.com/example/laundry-storefront/internal/dialog"
	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// writeError is the one place errors become HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		mp *laundry.MissingPrerequisiteError
		ce *dialog.CatalogError
		se *dialog.SubmitError
		be *backend.Error
	)
	switch {
	case errors.As(err, &mp):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: mp.Error()})
	case errors.Is(err, laundry.ErrNothingSelected):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Select at least one option before reserving."})
	case errors.Is(err, dialog.ErrStoreRequired):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "A store must be chosen."})
	case errors.Is(err, dialog.ErrUnknownOption):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "That option is not available on this machine.", Details: err.Error()})
	case errors.Is(err, internaltypes.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Please sign in to continue."})
	case errors.Is(err, internaltypes.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Not found"})
	case errors.Is(err, dialog.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Your reservation is already being submitted."})
	case errors.Is(err, dialog.ErrEstimatePending):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "The estimate is still being calculated."})
	case errors.Is(err, internaltypes.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Conflict"})
	case errors.As(err, &ce):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: ce.Message})
	case errors.As(err, &se):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: se.Message})
	case errors.As(err, &be):
		msg := be.Message
		if msg == "" {
			msg = "The laundromat service is unavailable. Please try again."
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: msg})
	default:
		s.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal Server Error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request", Details: err.Error()})
}
