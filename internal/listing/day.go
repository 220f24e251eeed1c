package listing

import (
	"strconv"
	"strings"
	"time"
)

// Day is a calendar date parsed from the backend's dot-delimited format
// ("2025.08.14", "2025. 8. 14."). The zero Day marks an unparseable date.
type Day struct {
	t time.Time
}

func ParseDay(s string) (Day, bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	var nums []int
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Day{}, false
		}
		nums = append(nums, n)
	}
	if len(nums) != 3 {
		return Day{}, false
	}
	y, m, d := nums[0], nums[1], nums[2]
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return Day{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// reject dates that time.Date normalized, e.g. 2025.02.30
	if t.Day() != d {
		return Day{}, false
	}
	return Day{t: t}, true
}

func (d Day) Valid() bool { return !d.t.IsZero() }

func (d Day) String() string {
	if !d.Valid() {
		return ""
	}
	return d.t.Format("2006.01.02")
}

// compareNewest orders later days first; invalid days go last.
func compareNewest(a, b Day) int {
	switch {
	case !a.Valid() && !b.Valid():
		return 0
	case !a.Valid():
		return 1
	case !b.Valid():
		return -1
	}
	return b.t.Compare(a.t)
}

// compareOldest orders earlier days first; invalid days still go last.
func compareOldest(a, b Day) int {
	switch {
	case !a.Valid() && !b.Valid():
		return 0
	case !a.Valid():
		return 1
	case !b.Valid():
		return -1
	}
	return a.t.Compare(b.t)
}
