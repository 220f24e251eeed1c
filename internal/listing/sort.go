package listing

import (
	"cmp"
	"fmt"
	"slices"
)

type Review struct {
	ID         string  `json:"id" validate:"required"`
	StoreID    string  `json:"storeId,omitempty"`
	Author     string  `json:"author,omitempty"`
	Rating     float64 `json:"rating" validate:"gte=0,lte=5"`
	Content    string  `json:"content,omitempty"`
	HasComment bool    `json:"hasComment"`
	CreatedAt  string  `json:"createdAt" validate:"required"`
}

type Notice struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Pinned    bool   `json:"pinned"`
	CreatedAt string `json:"createdAt" validate:"required"`
}

type ReviewSort string

const (
	ReviewNewest     ReviewSort = "newest"
	ReviewRating     ReviewSort = "rating"
	ReviewNoComment  ReviewSort = "no-comment"
	ReviewHasComment ReviewSort = "has-comment"
)

// ParseReviewSort defaults to newest for an empty key.
func ParseReviewSort(s string) (ReviewSort, error) {
	switch ReviewSort(s) {
	case "":
		return ReviewNewest, nil
	case ReviewNewest, ReviewRating, ReviewNoComment, ReviewHasComment:
		return ReviewSort(s), nil
	}
	return "", fmt.Errorf("unknown review sort %q", s)
}

type NoticeSort string

const (
	NoticeNewest NoticeSort = "newest"
	NoticeOldest NoticeSort = "oldest"
)

func ParseNoticeSort(s string) (NoticeSort, error) {
	switch NoticeSort(s) {
	case "":
		return NoticeNewest, nil
	case NoticeNewest, NoticeOldest:
		return NoticeSort(s), nil
	}
	return "", fmt.Errorf("unknown notice sort %q", s)
}

// by chains comparators: later ones only break ties left by earlier ones.
func by[T any](cmps ...func(a, b T) int) func(a, b T) int {
	return func(a, b T) int {
		for _, c := range cmps {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	}
}

// keyed caches the parsed day next to each row so the comparators do not
// re-parse on every comparison.
type keyed[T any] struct {
	row T
	day Day
}

func sortKeyed[T any](rows []T, day func(T) string, cmp func(a, b keyed[T]) int) []T {
	ks := make([]keyed[T], len(rows))
	for i, r := range rows {
		d, _ := ParseDay(day(r))
		ks[i] = keyed[T]{row: r, day: d}
	}
	slices.SortStableFunc(ks, cmp)
	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.row
	}
	return out
}

type keyedReview = keyed[Review]

func reviewNewest(a, b keyedReview) int { return compareNewest(a.day, b.day) }
func reviewRating(a, b keyedReview) int { return cmp.Compare(b.row.Rating, a.row.Rating) }

func reviewCommentFirst(want bool) func(a, b keyedReview) int {
	return func(a, b keyedReview) int {
		switch {
		case a.row.HasComment == b.row.HasComment:
			return 0
		case a.row.HasComment == want:
			return -1
		}
		return 1
	}
}

// SortReviews returns a new slice ordered by key; rows is left untouched.
func SortReviews(rows []Review, key ReviewSort) []Review {
	var c func(a, b keyedReview) int
	switch key {
	case ReviewRating:
		c = by(reviewRating, reviewNewest)
	case ReviewNoComment:
		c = by(reviewCommentFirst(false), reviewNewest, reviewRating)
	case ReviewHasComment:
		c = by(reviewCommentFirst(true), reviewNewest, reviewRating)
	default:
		c = by(reviewNewest, reviewRating)
	}
	return sortKeyed(rows, func(r Review) string { return r.CreatedAt }, c)
}

type keyedNotice = keyed[Notice]

func noticePinned(a, b keyedNotice) int {
	switch {
	case a.row.Pinned == b.row.Pinned:
		return 0
	case a.row.Pinned:
		return -1
	}
	return 1
}

// SortNotices keeps pinned notices on top and orders the rest by key.
func SortNotices(rows []Notice, key NoticeSort) []Notice {
	dates := func(a, b keyedNotice) int { return compareNewest(a.day, b.day) }
	if key == NoticeOldest {
		dates = func(a, b keyedNotice) int { return compareOldest(a.day, b.day) }
	}
	return sortKeyed(rows, func(n Notice) string { return n.CreatedAt }, by(noticePinned, dates))
}
