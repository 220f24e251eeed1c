package laundry

import "fmt"

type DeviceType string

const (
	DeviceWasher DeviceType = "washer"
	DeviceDryer  DeviceType = "dryer"
)

type OptionKind string

const (
	KindCourse OptionKind = "course"
	KindAddOn  OptionKind = "addon"
)

// MachineOption is one selectable item on a machine. Price is in minor currency
// units; Minutes is zero when the option carries no base duration.
type MachineOption struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Kind    OptionKind `json:"kind"`
	Device  DeviceType `json:"device"`
	Price   int64      `json:"price"`
	Minutes int        `json:"minutes,omitempty"`
}

type Catalog struct {
	Courses    []MachineOption `json:"courses"`
	AddOns     []MachineOption `json:"addOns"`
	DryerTimes []MachineOption `json:"dryerTimes"`
}

func (c Catalog) Empty() bool {
	return len(c.Courses) == 0 && len(c.AddOns) == 0 && len(c.DryerTimes) == 0
}

func (c Catalog) Course(id string) (MachineOption, bool)    { return find(c.Courses, id) }
func (c Catalog) AddOn(id string) (MachineOption, bool)     { return find(c.AddOns, id) }
func (c Catalog) DryerTime(id string) (MachineOption, bool) { return find(c.DryerTimes, id) }

// Find looks an id up across all three groups.
func (c Catalog) Find(id string) (MachineOption, bool) {
	if o, ok := c.Course(id); ok {
		return o, true
	}
	if o, ok := c.AddOn(id); ok {
		return o, true
	}
	return c.DryerTime(id)
}

func find(opts []MachineOption, id string) (MachineOption, bool) {
	if id == "" {
		return MachineOption{}, false
	}
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return MachineOption{}, false
}

type Mode string

const (
	ModeWash    Mode = "wash"
	ModeDry     Mode = "dry"
	ModeWashDry Mode = "wash_dry"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeWash, ModeDry, ModeWashDry:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want wash, dry or wash_dry)", s)
}

func (m Mode) IncludesWash() bool { return m == ModeWash || m == ModeWashDry }
func (m Mode) IncludesDry() bool  { return m == ModeDry || m == ModeWashDry }

type Estimate struct {
	TotalPrice   int64 `json:"totalPrice"`
	TotalMinutes int   `json:"totalMinutes"`
}

func (e Estimate) IsZero() bool { return e.TotalPrice == 0 && e.TotalMinutes == 0 }

// MissingPrerequisiteError is returned before any network call when the active
// mode lacks a machine it needs.
type MissingPrerequisiteError struct {
	Mode    Mode
	Machine DeviceType
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("a %s must be chosen for %s reservations", e.Machine, e.Mode)
}

func ValidatePrerequisites(mode Mode, washerID, dryerID string) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if mode.IncludesWash() && washerID == "" {
		return &MissingPrerequisiteError{Mode: mode, Machine: DeviceWasher}
	}
	if mode.IncludesDry() && dryerID == "" {
		return &MissingPrerequisiteError{Mode: mode, Machine: DeviceDryer}
	}
	return nil
}
