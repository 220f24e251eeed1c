package laundry

import "sort"

// Selection holds at most one course, a set of add-ons and at most one dryer
// time. AddOnIDs is kept sorted and free of duplicates.
type Selection struct {
	CourseID    string   `json:"courseId,omitempty"`
	AddOnIDs    []string `json:"addOnIds"`
	DryerTimeID string   `json:"dryerTimeId,omitempty"`
}

func (s *Selection) SetCourse(id string) { s.CourseID = id }

func (s *Selection) SetDryerTime(id string) { s.DryerTimeID = id }

// ToggleAddOn adds id when absent and removes it when present.
func (s *Selection) ToggleAddOn(id string) {
	if id == "" {
		return
	}
	i := sort.SearchStrings(s.AddOnIDs, id)
	if i < len(s.AddOnIDs) && s.AddOnIDs[i] == id {
		next := make([]string, 0, len(s.AddOnIDs)-1)
		next = append(next, s.AddOnIDs[:i]...)
		s.AddOnIDs = append(next, s.AddOnIDs[i+1:]...)
		return
	}
	next := make([]string, 0, len(s.AddOnIDs)+1)
	next = append(next, s.AddOnIDs[:i]...)
	next = append(next, id)
	s.AddOnIDs = append(next, s.AddOnIDs[i:]...)
}

func (s Selection) HasAddOn(id string) bool {
	i := sort.SearchStrings(s.AddOnIDs, id)
	return i < len(s.AddOnIDs) && s.AddOnIDs[i] == id
}

func (s *Selection) Reset() { *s = Selection{} }

func (s Selection) Empty() bool {
	return s.CourseID == "" && len(s.AddOnIDs) == 0 && s.DryerTimeID == ""
}

// OptionIDs returns the selected ids that count for mode, course first.
func (s Selection) OptionIDs(mode Mode) []string {
	out := make([]string, 0, len(s.AddOnIDs)+2)
	if mode.IncludesWash() {
		if s.CourseID != "" {
			out = append(out, s.CourseID)
		}
		out = append(out, s.AddOnIDs...)
	}
	if mode.IncludesDry() && s.DryerTimeID != "" {
		out = append(out, s.DryerTimeID)
	}
	return out
}

// WashOptionIDs and DryOptionIDs split the selection per machine for the
// remote estimator, which prices one machine at a time.
func (s Selection) WashOptionIDs() []string { return s.OptionIDs(ModeWash) }
func (s Selection) DryOptionIDs() []string  { return s.OptionIDs(ModeDry) }
