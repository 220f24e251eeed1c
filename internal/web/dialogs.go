package web

import (
	"errors"
	"net/http"

	"github.com/example/laundry-storefront/internal/dialog"
	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/gin-gonic/gin"
)

type openDialogRequest struct {
	StoreID  string `json:"storeId" binding:"required"`
	WasherID string `json:"washerId"`
	DryerID  string `json:"dryerId"`
	Mode     string `json:"mode" binding:"required,oneof=wash dry wash_dry"`
}

type optionRequest struct {
	OptionID string `json:"optionId" binding:"required"`
}

type catalogFailure struct {
	ErrorResponse
	Dialog *dialog.State `json:"dialog"`
}

// respondDialog writes st. An estimate failure is not blocking, so the state
// (which carries the message) goes out with status. A catalog failure returns
// the dialog alongside the error.
func (s *Server) respondDialog(c *gin.Context, status int, st *dialog.State, err error) {
	if err == nil {
		c.JSON(status, st)
		return
	}
	var (
		ee *dialog.EstimateError
		ce *dialog.CatalogError
	)
	switch {
	case errors.As(err, &ee) && st != nil:
		c.JSON(status, st)
	case errors.As(err, &ce) && st != nil:
		c.JSON(http.StatusBadGateway, catalogFailure{ErrorResponse: ErrorResponse{Message: ce.Message}, Dialog: st})
	default:
		s.writeError(c, err)
	}
}

func (s *Server) handleOpenDialog(c *gin.Context) {
	var req openDialogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := s.Dialogs.Open(c.Request.Context(), sessionFrom(c), dialog.OpenParams{
		StoreID:  req.StoreID,
		WasherID: req.WasherID,
		DryerID:  req.DryerID,
		Mode:     laundry.Mode(req.Mode),
	})
	s.respondDialog(c, http.StatusCreated, st, err)
}

func (s *Server) handleGetDialog(c *gin.Context) {
	st, err := s.Dialogs.Get(c.Request.Context(), sessionFrom(c), c.Param("id"))
	s.respondDialog(c, http.StatusOK, st, err)
}

func (s *Server) handleSelectCourse(c *gin.Context) {
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := s.Dialogs.SelectCourse(c.Request.Context(), sessionFrom(c), c.Param("id"), req.OptionID)
	s.respondDialog(c, http.StatusOK, st, err)
}

func (s *Server) handleToggleAddOn(c *gin.Context) {
	st, err := s.Dialogs.ToggleAddOn(c.Request.Context(), sessionFrom(c), c.Param("id"), c.Param("optionId"))
	s.respondDialog(c, http.StatusOK, st, err)
}

func (s *Server) handleSelectDryerTime(c *gin.Context) {
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := s.Dialogs.SelectDryerTime(c.Request.Context(), sessionFrom(c), c.Param("id"), req.OptionID)
	s.respondDialog(c, http.StatusOK, st, err)
}

func (s *Server) handleResetDialog(c *gin.Context) {
	st, err := s.Dialogs.Reset(c.Request.Context(), sessionFrom(c), c.Param("id"))
	s.respondDialog(c, http.StatusOK, st, err)
}

func (s *Server) handleCloseDialog(c *gin.Context) {
	if err := s.Dialogs.Close(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSubmitDialog(c *gin.Context) {
	res, err := s.Dialogs.Submit(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
