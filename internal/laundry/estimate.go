package laundry

import "errors"

// Calculate derives the estimate from the price table in catalog. Ids that are
// not in the catalog contribute nothing; an empty selection is a zero estimate.
func Calculate(catalog Catalog, sel Selection, mode Mode) Estimate {
	var est Estimate
	if mode.IncludesWash() {
		if c, ok := catalog.Course(sel.CourseID); ok {
			est.TotalPrice += c.Price
			est.TotalMinutes += c.Minutes
		}
		for _, id := range sel.AddOnIDs {
			if a, ok := catalog.AddOn(id); ok {
				est.TotalPrice += a.Price
			}
		}
	}
	if mode.IncludesDry() {
		if d, ok := catalog.DryerTime(sel.DryerTimeID); ok {
			est.TotalPrice += d.Price
			est.TotalMinutes += d.Minutes
		}
	}
	return est
}

type ReservationRequest struct {
	StoreID      string   `json:"storeId"`
	WasherID     string   `json:"washerId,omitempty"`
	DryerID      string   `json:"dryerId,omitempty"`
	Mode         Mode     `json:"mode"`
	OptionIDs    []string `json:"optionIds"`
	TotalPrice   int64    `json:"totalPrice"`
	TotalMinutes int      `json:"totalTime"`
}

var ErrNothingSelected = errors.New("select at least one option before reserving")

// NewReservationRequest packages a finalized selection. Machine ids that the
// mode does not use are dropped.
func NewReservationRequest(storeID, washerID, dryerID string, mode Mode, sel Selection, est Estimate) (ReservationRequest, error) {
	if err := ValidatePrerequisites(mode, washerID, dryerID); err != nil {
		return ReservationRequest{}, err
	}
	ids := sel.OptionIDs(mode)
	if len(ids) == 0 {
		return ReservationRequest{}, ErrNothingSelected
	}
	req := ReservationRequest{
		StoreID:      storeID,
		Mode:         mode,
		OptionIDs:    ids,
		TotalPrice:   est.TotalPrice,
		TotalMinutes: est.TotalMinutes,
	}
	if mode.IncludesWash() {
		req.WasherID = washerID
	}
	if mode.IncludesDry() {
		req.DryerID = dryerID
	}
	return req, nil
}
