package submissions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/laundry-storefront/internal/db"
	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Submission is one reservation request the storefront sent to the backend.
type Submission struct {
	ID            uuid.UUID    `json:"id"`
	UserID        string       `json:"userId"`
	DialogID      string       `json:"dialogId"`
	StoreID       string       `json:"storeId"`
	WasherID      string       `json:"washerId,omitempty"`
	DryerID       string       `json:"dryerId,omitempty"`
	Mode          laundry.Mode `json:"mode"`
	OptionIDs     []string     `json:"optionIds"`
	TotalPrice    int64        `json:"totalPrice"`
	TotalMinutes  int          `json:"totalMinutes"`
	Status        Status       `json:"status"`
	Message       string       `json:"message,omitempty"`
	ReservationID string       `json:"reservationId,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// FromRequest fills a pending submission from the request about to be sent.
func FromRequest(userID, dialogID string, req laundry.ReservationRequest) Submission {
	return Submission{
		UserID:       userID,
		DialogID:     dialogID,
		StoreID:      req.StoreID,
		WasherID:     req.WasherID,
		DryerID:      req.DryerID,
		Mode:         req.Mode,
		OptionIDs:    req.OptionIDs,
		TotalPrice:   req.TotalPrice,
		TotalMinutes: req.TotalMinutes,
		Status:       StatusPending,
	}
}

func (s Submission) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("user_id required")
	}
	if s.DialogID == "" {
		return fmt.Errorf("dialog_id required")
	}
	if s.StoreID == "" {
		return fmt.Errorf("store_id required")
	}
	if _, err := laundry.ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if len(s.OptionIDs) == 0 {
		return fmt.Errorf("option_ids required")
	}
	if s.TotalPrice < 0 || s.TotalMinutes < 0 {
		return fmt.Errorf("totals must be >= 0")
	}
	return nil
}

func joinIDs(ids []string) string {
	var cleaned []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			cleaned = append(cleaned, id)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitIDs(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Create(ctx context.Context, s Submission) (uuid.UUID, error) {
	if err := s.Validate(); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err := r.db.Exec(ctx, `
INSERT INTO submissions(id,user_id,dialog_id,store_id,washer_id,dryer_id,mode,option_ids,total_price,total_minutes,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'pending')`,
		id, s.UserID, s.DialogID, s.StoreID, s.WasherID, s.DryerID, string(s.Mode), joinIDs(s.OptionIDs), s.TotalPrice, s.TotalMinutes,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create submission: %w", err)
	}
	return id, nil
}

// MarkResult settles a pending submission. A submission already settled (for
// example expired by the janitor) is left alone and reported as not found.
func (r *Repo) MarkResult(ctx context.Context, id uuid.UUID, status Status, message, reservationID string) error {
	n, err := r.db.Exec(ctx, `
UPDATE submissions SET status=$2, message=$3, reservation_id=$4, updated_at=now()
WHERE id=$1 AND status='pending'`, id, string(status), message, reservationID)
	if err != nil {
		return fmt.Errorf("mark submission: %w", err)
	}
	if n == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]Submission, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id,user_id,dialog_id,store_id,washer_id,dryer_id,mode,option_ids,total_price,total_minutes,status,message,reservation_id,created_at,updated_at
FROM submissions
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		var s Submission
		var mode, status, optionIDs string
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.DialogID, &s.StoreID, &s.WasherID, &s.DryerID, &mode, &optionIDs,
			&s.TotalPrice, &s.TotalMinutes, &status, &s.Message, &s.ReservationID, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.Mode = laundry.Mode(mode)
		s.Status = Status(status)
		s.OptionIDs = splitIDs(optionIDs)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ExpirePending marks submissions that stayed pending since before cutoff as
// expired and returns how many it touched.
func (r *Repo) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.db.Exec(ctx, `
UPDATE submissions SET status='expired', message='no result recorded', updated_at=now()
WHERE status='pending' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire submissions: %w", err)
	}
	return n, nil
}
