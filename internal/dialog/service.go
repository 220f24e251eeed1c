package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/laundry-storefront/internal/backend"
	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/example/laundry-storefront/internal/session"
	"github.com/example/laundry-storefront/internal/submissions"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is the part of the laundromat backend the dialog needs.
type Backend interface {
	FetchCatalog(ctx context.Context, sess session.Session, storeID, machineID string, device laundry.DeviceType) (laundry.Catalog, error)
	RequestEstimate(ctx context.Context, sess session.Session, storeID, machineID string, optionIDs []string) (laundry.Estimate, error)
	CreateReservation(ctx context.Context, sess session.Session, req laundry.ReservationRequest) (backend.Confirmation, error)
}

// Recorder keeps the submission ledger. It may be nil.
type Recorder interface {
	Create(ctx context.Context, s submissions.Submission) (uuid.UUID, error)
	MarkResult(ctx context.Context, id uuid.UUID, status submissions.Status, message, reservationID string) error
}

type Config struct {
	// RemoteEstimate prices selections through the backend instead of the
	// catalog's price table.
	RemoteEstimate bool
	SubmitLockTTL  time.Duration
}

type Service struct {
	store    Store
	backend  Backend
	recorder Recorder
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(store Store, be Backend, rec Recorder, log *zap.Logger, cfg Config) *Service {
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 30 * time.Second
	}
	return &Service{
		store:    store,
		backend:  be,
		recorder: rec,
		log:      log.Named("dialog"),
		cfg:      cfg,
		now:      time.Now,
	}
}

type OpenParams struct {
	StoreID  string
	WasherID string
	DryerID  string
	Mode     laundry.Mode
}

// Open starts a dialog for one store and its machines. Missing machines are
// rejected before anything is fetched. A catalog failure still creates the
// dialog, with an empty selection and CatalogError set, and returns
// *CatalogError alongside it.
func (s *Service) Open(ctx context.Context, sess session.Session, p OpenParams) (*State, error) {
	if !sess.Valid() {
		return nil, internaltypes.ErrUnauthorized
	}
	if p.StoreID == "" {
		return nil, ErrStoreRequired
	}
	if err := laundry.ValidatePrerequisites(p.Mode, p.WasherID, p.DryerID); err != nil {
		return nil, err
	}

	now := s.now()
	st := &State{
		ID:        uuid.NewString(),
		Owner:     sess.UserID,
		StoreID:   p.StoreID,
		Mode:      p.Mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Mode.IncludesWash() {
		st.WasherID = p.WasherID
	}
	if p.Mode.IncludesDry() {
		st.DryerID = p.DryerID
	}
	log := s.log.With(zap.String("dialog_id", st.ID), zap.String("store_id", st.StoreID), zap.String("mode", string(st.Mode)))

	cat, err := s.fetchCatalog(ctx, sess, st)
	if err != nil {
		st.CatalogError = userMessage(err, catalogFailedMessage)
		if cerr := s.store.Create(ctx, st); cerr != nil {
			return nil, cerr
		}
		log.Warn("catalog fetch failed", zap.Error(err))
		return st, &CatalogError{Message: st.CatalogError, Err: err}
	}
	st.Catalog = cat

	// conventional defaults: first course for washing, first dryer time for drying
	if p.Mode.IncludesWash() && len(cat.Courses) > 0 {
		st.Selection.SetCourse(cat.Courses[0].ID)
	}
	if p.Mode.IncludesDry() && len(cat.DryerTimes) > 0 {
		st.Selection.SetDryerTime(cat.DryerTimes[0].ID)
	}
	s.recompute(st)

	if err := s.store.Create(ctx, st); err != nil {
		return nil, err
	}
	log.Info("dialog opened", zap.Int("courses", len(cat.Courses)), zap.Int("add_ons", len(cat.AddOns)), zap.Int("dryer_times", len(cat.DryerTimes)))

	if st.EstimatePending {
		return s.refreshRemote(ctx, sess, st)
	}
	return st, nil
}

func (s *Service) fetchCatalog(ctx context.Context, sess session.Session, st *State) (laundry.Catalog, error) {
	return laundry.LoadCatalog(ctx, st.Mode, st.WasherID, st.DryerID, func(ctx context.Context, machineID string, device laundry.DeviceType) (laundry.Catalog, error) {
		return s.backend.FetchCatalog(ctx, sess, st.StoreID, machineID, device)
	})
}

func (s *Service) Get(ctx context.Context, sess session.Session, id string) (*State, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !owns(sess, st) {
		return nil, ErrNotFound
	}
	return st, nil
}

func (s *Service) SelectCourse(ctx context.Context, sess session.Session, id, optionID string) (*State, error) {
	return s.change(ctx, sess, id, func(st *State) error {
		if _, ok := st.Catalog.Course(optionID); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
		}
		st.Selection.SetCourse(optionID)
		return nil
	})
}

func (s *Service) ToggleAddOn(ctx context.Context, sess session.Session, id, optionID string) (*State, error) {
	return s.change(ctx, sess, id, func(st *State) error {
		if _, ok := st.Catalog.AddOn(optionID); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
		}
		st.Selection.ToggleAddOn(optionID)
		return nil
	})
}

func (s *Service) SelectDryerTime(ctx context.Context, sess session.Session, id, optionID string) (*State, error) {
	return s.change(ctx, sess, id, func(st *State) error {
		if _, ok := st.Catalog.DryerTime(optionID); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
		}
		st.Selection.SetDryerTime(optionID)
		return nil
	})
}

// Reset clears course, add-ons and dryer time in a single store update.
func (s *Service) Reset(ctx context.Context, sess session.Session, id string) (*State, error) {
	return s.change(ctx, sess, id, func(st *State) error {
		st.Selection.Reset()
		return nil
	})
}

func (s *Service) Close(ctx context.Context, sess session.Session, id string) error {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// change applies fn and recomputes the estimate in the same store update.
// In remote mode the backend is asked afterwards, outside the update.
func (s *Service) change(ctx context.Context, sess session.Session, id string, fn func(*State) error) (*State, error) {
	st, err := s.store.Update(ctx, id, func(st *State) error {
		if !owns(sess, st) {
			return ErrNotFound
		}
		if err := fn(st); err != nil {
			return err
		}
		st.SubmitError = ""
		s.recompute(st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if st.EstimatePending {
		return s.refreshRemote(ctx, sess, st)
	}
	return st, nil
}

// recompute bumps EstimateSeq so that any remote estimate still in flight for
// the previous selection is discarded on arrival.
func (s *Service) recompute(st *State) {
	st.EstimateSeq++
	st.EstimateError = ""
	st.UpdatedAt = s.now()
	if !s.cfg.RemoteEstimate {
		st.Estimate = laundry.Calculate(st.Catalog, st.Selection, st.Mode)
		st.EstimatePending = false
		return
	}
	// never show the previous selection's numbers while a new estimate is out
	st.Estimate = laundry.Estimate{}
	st.EstimatePending = len(st.Selection.OptionIDs(st.Mode)) > 0
}

// refreshRemote asks the backend for the estimate of snap and applies it only
// if no newer change was made meanwhile. A stale answer returns the newer
// state untouched. The result is stored even when ctx was cancelled so the
// dialog never stays pending.
func (s *Service) refreshRemote(ctx context.Context, sess session.Session, snap *State) (*State, error) {
	est, rerr := s.remoteEstimate(ctx, sess, snap)

	wctx := context.WithoutCancel(ctx)
	var stale bool
	st, err := s.store.Update(wctx, snap.ID, func(st *State) error {
		if st.EstimateSeq != snap.EstimateSeq {
			stale = true
			return errStale
		}
		st.EstimatePending = false
		if rerr != nil {
			st.Estimate = laundry.Estimate{}
			st.EstimateError = userMessage(rerr, estimateFailedMessage)
			return nil
		}
		st.Estimate = est
		return nil
	})
	if stale {
		s.log.Debug("discarded stale estimate", zap.String("dialog_id", snap.ID), zap.Uint64("seq", snap.EstimateSeq))
		return s.store.Get(wctx, snap.ID)
	}
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		s.log.Warn("remote estimate failed", zap.String("dialog_id", snap.ID), zap.Error(rerr))
		return st, &EstimateError{Message: st.EstimateError, Err: rerr}
	}
	return st, nil
}

var errStale = errors.New("stale estimate")

// remoteEstimate prices each machine separately and sums the results.
func (s *Service) remoteEstimate(ctx context.Context, sess session.Session, st *State) (laundry.Estimate, error) {
	var total laundry.Estimate
	if st.Mode.IncludesWash() {
		if ids := st.Selection.WashOptionIDs(); len(ids) > 0 {
			e, err := s.backend.RequestEstimate(ctx, sess, st.StoreID, st.WasherID, ids)
			if err != nil {
				return laundry.Estimate{}, err
			}
			total.TotalPrice += e.TotalPrice
			total.TotalMinutes += e.TotalMinutes
		}
	}
	if st.Mode.IncludesDry() {
		if ids := st.Selection.DryOptionIDs(); len(ids) > 0 {
			e, err := s.backend.RequestEstimate(ctx, sess, st.StoreID, st.DryerID, ids)
			if err != nil {
				return laundry.Estimate{}, err
			}
			total.TotalPrice += e.TotalPrice
			total.TotalMinutes += e.TotalMinutes
		}
	}
	return total, nil
}

type Result struct {
	Message       string `json:"message"`
	ReservationID string `json:"reservationId,omitempty"`
	Redirect      string `json:"redirect"`
}

// Submit sends the dialog's reservation request exactly once. While it is in
// flight a second Submit for the same dialog fails with ErrSubmitInFlight. On
// success the dialog is closed; on failure it is kept with SubmitError set.
func (s *Service) Submit(ctx context.Context, sess session.Session, id string) (Result, error) {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return Result{}, err
	}

	ok, err := s.store.AcquireSubmit(ctx, id, s.cfg.SubmitLockTTL)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, ErrSubmitInFlight
	}
	defer func() {
		if err := s.store.ReleaseSubmit(context.WithoutCancel(ctx), id); err != nil {
			s.log.Warn("release submit lock", zap.String("dialog_id", id), zap.Error(err))
		}
	}()

	// read again under the lock: an earlier submit may have closed the dialog
	// or the selection may have changed since the check above
	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return Result{}, err
	}
	if st.EstimatePending {
		return Result{}, ErrEstimatePending
	}
	req, err := laundry.NewReservationRequest(st.StoreID, st.WasherID, st.DryerID, st.Mode, st.Selection, st.Estimate)
	if err != nil {
		return Result{}, err
	}
	log := s.log.With(zap.String("dialog_id", id), zap.String("store_id", st.StoreID))

	subID := s.recordPending(ctx, sess, id, req, log)

	conf, err := s.backend.CreateReservation(ctx, sess, req)
	if err != nil {
		msg := userMessage(err, submitFailedMessage)
		s.recordResult(ctx, subID, submissions.StatusFailed, msg, "", log)
		if _, uerr := s.store.Update(ctx, id, func(st *State) error {
			st.SubmitError = msg
			st.UpdatedAt = s.now()
			return nil
		}); uerr != nil {
			log.Warn("store submit error", zap.Error(uerr))
		}
		log.Warn("reservation failed", zap.Error(err))
		return Result{}, &SubmitError{Message: msg, Err: err}
	}

	s.recordResult(ctx, subID, submissions.StatusSucceeded, conf.Message, conf.ReservationID, log)
	if err := s.store.Delete(ctx, id); err != nil {
		log.Warn("close dialog after reservation", zap.Error(err))
	}
	log.Info("reservation created", zap.String("reservation_id", conf.ReservationID))

	msg := conf.Message
	if msg == "" {
		msg = submitDoneMessage
	}
	return Result{Message: msg, ReservationID: conf.ReservationID, Redirect: reservationsPath}, nil
}

func (s *Service) recordPending(ctx context.Context, sess session.Session, dialogID string, req laundry.ReservationRequest, log *zap.Logger) uuid.UUID {
	if s.recorder == nil {
		return uuid.Nil
	}
	id, err := s.recorder.Create(ctx, submissions.FromRequest(sess.UserID, dialogID, req))
	if err != nil {
		log.Warn("record submission", zap.Error(err))
		return uuid.Nil
	}
	return id
}

func (s *Service) recordResult(ctx context.Context, id uuid.UUID, status submissions.Status, message, reservationID string, log *zap.Logger) {
	if s.recorder == nil || id == uuid.Nil {
		return
	}
	if err := s.recorder.MarkResult(context.WithoutCancel(ctx), id, status, message, reservationID); err != nil {
		log.Warn("record submission result", zap.String("submission_id", id.String()), zap.Error(err))
	}
}

func owns(sess session.Session, st *State) bool {
	return sess.Valid() && st.Owner == sess.UserID
}

// userMessage prefers the backend's own message over fallback.
func userMessage(err error, fallback string) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}
