package dialog

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/example/laundry-storefront/internal/laundry"
)

// State is one open reservation dialog. It is only ever changed through a
// Store update, so readers never observe a half-applied selection change.
type State struct {
	ID       string       `json:"id"`
	Owner    string       `json:"-"`
	StoreID  string       `json:"storeId"`
	WasherID string       `json:"washerId,omitempty"`
	DryerID  string       `json:"dryerId,omitempty"`
	Mode     laundry.Mode `json:"mode"`

	Catalog   laundry.Catalog   `json:"catalog"`
	Selection laundry.Selection `json:"selection"`
	Estimate  laundry.Estimate  `json:"estimate"`

	// EstimatePending is set while a remote estimate for EstimateSeq is out.
	EstimatePending bool   `json:"estimatePending"`
	EstimateSeq     uint64 `json:"estimateSeq"`

	CatalogError  string `json:"catalogError,omitempty"`
	EstimateError string `json:"estimateError,omitempty"`
	SubmitError   string `json:"submitError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// persisted keeps Owner in the stored JSON while the API view hides it.
type persisted struct {
	Owner string `json:"owner"`
	*State
}

var (
	ErrNotFound        = fmt.Errorf("dialog: %w", internaltypes.ErrNotFound)
	ErrUnknownOption   = errors.New("dialog: option is not offered by this machine")
	ErrSubmitInFlight  = fmt.Errorf("dialog: a reservation is already being submitted: %w", internaltypes.ErrConflict)
	ErrEstimatePending = fmt.Errorf("dialog: estimate is still being calculated: %w", internaltypes.ErrConflict)
	ErrStoreRequired   = errors.New("dialog: store id is required")
)

const (
	catalogFailedMessage  = "Could not load the machine's options. Please try again."
	estimateFailedMessage = "Could not calculate the estimate. Please try again."
	submitFailedMessage   = "The reservation could not be completed. Please try again."
	submitDoneMessage     = "Your reservation is complete."
	reservationsPath      = "/reservations"
)

// CatalogError blocks the dialog: no options could be loaded.
type CatalogError struct {
	Message string
	Err     error
}

func (e *CatalogError) Error() string { return e.Message }
func (e *CatalogError) Unwrap() error { return e.Err }

// EstimateError is not blocking; the selection stays usable and the estimate
// reads zero.
type EstimateError struct {
	Message string
	Err     error
}

func (e *EstimateError) Error() string { return e.Message }
func (e *EstimateError) Unwrap() error { return e.Err }

// SubmitError leaves the selection in place so the customer can retry.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }
func (e *SubmitError) Unwrap() error { return e.Err }
