package laundry

import "context"

// FetchFunc loads the options offered by one machine.
type FetchFunc func(ctx context.Context, machineID string, device DeviceType) (Catalog, error)

// LoadCatalog builds the catalog for the machines mode uses: courses and
// add-ons from the washer, then dryer times from the dryer. The first fetch
// error is returned as is.
func LoadCatalog(ctx context.Context, mode Mode, washerID, dryerID string, fetch FetchFunc) (Catalog, error) {
	var cat Catalog
	if mode.IncludesWash() {
		w, err := fetch(ctx, washerID, DeviceWasher)
		if err != nil {
			return Catalog{}, err
		}
		cat.Courses, cat.AddOns = w.Courses, w.AddOns
	}
	if mode.IncludesDry() {
		d, err := fetch(ctx, dryerID, DeviceDryer)
		if err != nil {
			return Catalog{}, err
		}
		cat.DryerTimes = d.DryerTimes
	}
	return cat, nil
}
