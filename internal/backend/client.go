package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/example/laundry-storefront/internal/listing"
	"github.com/example/laundry-storefront/internal/session"
	"github.com/go-playground/validator/v10"
)

// Client talks to the laundromat backend. Every call takes the customer's
// session explicitly; it is forwarded as a Cookie header.
type Client struct {
	hc       *http.Client
	baseURL  string
	validate *validator.Validate
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		hc:       &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Error is a non-2xx answer from the backend. Message is the backend's own
// message field when it sent one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (status=%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("backend: request failed (status=%d)", e.Status)
}

// ErrMalformed marks a 2xx response whose body did not match the expected shape.
var ErrMalformed = errors.New("backend: malformed response")

type optionPayload struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Price   *int64 `json:"price" validate:"required,gte=0"`
	Minutes int    `json:"minutes" validate:"gte=0"`
}

type catalogPayload struct {
	Courses    []optionPayload `json:"courses" validate:"dive"`
	AddOns     []optionPayload `json:"addOns" validate:"dive"`
	DryerTimes []optionPayload `json:"dryerTimes" validate:"dive"`
}

func toOptions(in []optionPayload, kind laundry.OptionKind, device laundry.DeviceType) []laundry.MachineOption {
	out := make([]laundry.MachineOption, 0, len(in))
	for _, p := range in {
		out = append(out, laundry.MachineOption{
			ID:      p.ID,
			Name:    p.Name,
			Kind:    kind,
			Device:  device,
			Price:   *p.Price,
			Minutes: p.Minutes,
		})
	}
	return out
}

// FetchCatalog loads the options of one machine. Courses and add-ons are
// tagged with device; dryer times always belong to a dryer.
func (c *Client) FetchCatalog(ctx context.Context, sess session.Session, storeID, machineID string, device laundry.DeviceType) (laundry.Catalog, error) {
	var p catalogPayload
	if err := c.getJSON(ctx, sess, machinePath(storeID, machineID, "options"), &p); err != nil {
		return laundry.Catalog{}, err
	}
	if err := c.check(p); err != nil {
		return laundry.Catalog{}, err
	}
	return laundry.Catalog{
		Courses:    toOptions(p.Courses, laundry.KindCourse, device),
		AddOns:     toOptions(p.AddOns, laundry.KindAddOn, device),
		DryerTimes: toOptions(p.DryerTimes, laundry.KindCourse, laundry.DeviceDryer),
	}, nil
}

type estimatePayload struct {
	TotalCost     *int64 `json:"totalCost" validate:"required,gte=0"`
	TotalDuration *int   `json:"totalDuration" validate:"required,gte=0"`
}

// RequestEstimate asks the backend to price optionIDs on one machine.
func (c *Client) RequestEstimate(ctx context.Context, sess session.Session, storeID, machineID string, optionIDs []string) (laundry.Estimate, error) {
	if optionIDs == nil {
		optionIDs = []string{}
	}
	body := struct {
		OptionIDs []string `json:"optionIds"`
	}{OptionIDs: optionIDs}

	var p estimatePayload
	if err := c.sendJSON(ctx, sess, http.MethodPost, machinePath(storeID, machineID, "estimate"), body, &p); err != nil {
		return laundry.Estimate{}, err
	}
	if err := c.check(p); err != nil {
		return laundry.Estimate{}, err
	}
	return laundry.Estimate{TotalPrice: *p.TotalCost, TotalMinutes: *p.TotalDuration}, nil
}

type Confirmation struct {
	Message       string `json:"message"`
	ReservationID string `json:"reservationId,omitempty"`
}

// CreateReservation sends req once. It never retries.
func (c *Client) CreateReservation(ctx context.Context, sess session.Session, req laundry.ReservationRequest) (Confirmation, error) {
	var conf Confirmation
	if err := c.sendJSON(ctx, sess, http.MethodPost, "/reservations", req, &conf); err != nil {
		return Confirmation{}, err
	}
	return conf, nil
}

func (c *Client) ListReviews(ctx context.Context, sess session.Session, storeID string) ([]listing.Review, error) {
	var rows []listing.Review
	if err := c.getJSON(ctx, sess, "/stores/"+url.PathEscape(storeID)+"/reviews", &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		if err := c.check(rows[i]); err != nil {
			return nil, fmt.Errorf("review %d: %w", i, err)
		}
	}
	return rows, nil
}

func (c *Client) ListNotices(ctx context.Context, sess session.Session) ([]listing.Notice, error) {
	var rows []listing.Notice
	if err := c.getJSON(ctx, sess, "/notices", &rows); err != nil {
		return nil, err
	}
	for i := range rows {
		if err := c.check(rows[i]); err != nil {
			return nil, fmt.Errorf("notice %d: %w", i, err)
		}
	}
	return rows, nil
}

func machinePath(storeID, machineID, leaf string) string {
	return "/stores/" + url.PathEscape(storeID) + "/machines/" + url.PathEscape(machineID) + "/" + leaf
}

func (c *Client) getJSON(ctx context.Context, sess session.Session, path string, out any) error {
	status, body, err := c.do(ctx, sess, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.decode(status, body, out)
}

func (c *Client) sendJSON(ctx context.Context, sess session.Session, method, path string, in, out any) error {
	jb, err := json.Marshal(in)
	if err != nil {
		return err
	}
	status, body, err := c.do(ctx, sess, method, path, jb)
	if err != nil {
		return err
	}
	return c.decode(status, body, out)
}

func (c *Client) decode(status int, body []byte, out any) error {
	if status < 200 || status > 299 {
		var r struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &r)
		return &Error{Status: status, Message: r.Message}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// check rejects payloads that decoded but are missing required fields.
func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, sess session.Session, method, path string, body []byte) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h := sess.CookieHeader(); h != "" {
		req.Header.Set("Cookie", h)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("backend %s %s: read body: %w", method, path, err)
	}
	return res.StatusCode, b, nil
}
