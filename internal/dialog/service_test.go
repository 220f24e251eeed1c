package dialog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/laundry-storefront/internal/backend"
	"github.com/example/laundry-storefront/internal/internaltypes"
	"github.com/example/laundry-storefront/internal/laundry"
	"github.com/example/laundry-storefront/internal/session"
	"github.com/example/laundry-storefront/internal/submissions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	names = session.Names{Token: "access_token", User: "user_id"}
	alice = session.New(names, "tok-a", "alice")
	bob   = session.New(names, "tok-b", "bob")
)

func washerCatalog() laundry.Catalog {
	return laundry.Catalog{
		Courses: []laundry.MachineOption{
			{ID: "std", Name: "Standard", Kind: laundry.KindCourse, Device: laundry.DeviceWasher, Price: 4000, Minutes: 40},
			{ID: "quick", Name: "Quick", Kind: laundry.KindCourse, Device: laundry.DeviceWasher, Price: 3000, Minutes: 25},
		},
		AddOns: []laundry.MachineOption{
			{ID: "soft", Name: "Softener", Kind: laundry.KindAddOn, Device: laundry.DeviceWasher, Price: 500},
			{ID: "sterile", Name: "Sterilize", Kind: laundry.KindAddOn, Device: laundry.DeviceWasher, Price: 1000},
		},
	}
}

func dryerCatalog() laundry.Catalog {
	return laundry.Catalog{
		DryerTimes: []laundry.MachineOption{
			{ID: "dry30", Name: "30 min", Kind: laundry.KindCourse, Device: laundry.DeviceDryer, Price: 3000, Minutes: 30},
			{ID: "dry50", Name: "50 min", Kind: laundry.KindCourse, Device: laundry.DeviceDryer, Price: 4500, Minutes: 50},
		},
	}
}

type fakeBackend struct {
	mu           sync.Mutex
	catalogErr   error
	catalogCalls []string
	estimate     func(machineID string, ids []string) (laundry.Estimate, error)
	reserve      func(req laundry.ReservationRequest) (backend.Confirmation, error)
	reserveCalls int32
}

func (f *fakeBackend) FetchCatalog(_ context.Context, _ session.Session, _, machineID string, device laundry.DeviceType) (laundry.Catalog, error) {
	f.mu.Lock()
	f.catalogCalls = append(f.catalogCalls, machineID)
	f.mu.Unlock()
	if f.catalogErr != nil {
		return laundry.Catalog{}, f.catalogErr
	}
	if device == laundry.DeviceDryer {
		return dryerCatalog(), nil
	}
	return washerCatalog(), nil
}

func (f *fakeBackend) RequestEstimate(_ context.Context, _ session.Session, _, machineID string, ids []string) (laundry.Estimate, error) {
	if f.estimate == nil {
		return laundry.Estimate{}, errors.New("no estimator")
	}
	return f.estimate(machineID, ids)
}

func (f *fakeBackend) CreateReservation(_ context.Context, _ session.Session, req laundry.ReservationRequest) (backend.Confirmation, error) {
	atomic.AddInt32(&f.reserveCalls, 1)
	if f.reserve == nil {
		return backend.Confirmation{Message: "ok", ReservationID: "r-1"}, nil
	}
	return f.reserve(req)
}

type fakeRecorder struct {
	mu      sync.Mutex
	created []submissions.Submission
	results map[uuid.UUID]submissions.Status
}

func (r *fakeRecorder) Create(_ context.Context, s submissions.Submission) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, s)
	return uuid.New(), nil
}

func (r *fakeRecorder) MarkResult(_ context.Context, id uuid.UUID, status submissions.Status, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[uuid.UUID]submissions.Status{}
	}
	r.results[id] = status
	return nil
}

func newService(be Backend, rec Recorder, remote bool) *Service {
	return NewService(NewMemoryStore(time.Hour), be, rec, zap.NewNop(), Config{RemoteEstimate: remote, SubmitLockTTL: time.Minute})
}

func washParams() OpenParams {
	return OpenParams{StoreID: "s1", WasherID: "w1", Mode: laundry.ModeWash}
}

func TestOpen_PreselectsAndEstimates(t *testing.T) {
	be := &fakeBackend{}
	svc := newService(be, nil, false)

	st, err := svc.Open(context.Background(), alice, OpenParams{StoreID: "s1", WasherID: "w1", DryerID: "d1", Mode: laundry.ModeWashDry})
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "d1"}, be.catalogCalls)
	assert.Equal(t, "std", st.Selection.CourseID)
	assert.Equal(t, "dry30", st.Selection.DryerTimeID)
	assert.Equal(t, laundry.Estimate{TotalPrice: 7000, TotalMinutes: 70}, st.Estimate)
	assert.Empty(t, st.CatalogError)
}

func TestOpen_DropsUnusedMachine(t *testing.T) {
	be := &fakeBackend{}
	svc := newService(be, nil, false)

	st, err := svc.Open(context.Background(), alice, OpenParams{StoreID: "s1", WasherID: "w1", DryerID: "d1", Mode: laundry.ModeDry})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, be.catalogCalls)
	assert.Empty(t, st.WasherID)
	assert.Empty(t, st.Catalog.Courses)
	assert.Equal(t, laundry.Estimate{TotalPrice: 3000, TotalMinutes: 30}, st.Estimate)
}

func TestOpen_MissingPrerequisite(t *testing.T) {
	be := &fakeBackend{}
	svc := newService(be, nil, false)

	_, err := svc.Open(context.Background(), alice, OpenParams{StoreID: "s1", WasherID: "w1", Mode: laundry.ModeWashDry})
	var mp *laundry.MissingPrerequisiteError
	require.ErrorAs(t, err, &mp)
	assert.Equal(t, laundry.DeviceDryer, mp.Machine)
	assert.NotEmpty(t, err.Error())
	assert.Empty(t, be.catalogCalls, "no network call before prerequisites hold")

	_, err = svc.Open(context.Background(), alice, OpenParams{WasherID: "w1", Mode: laundry.ModeWash})
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = svc.Open(context.Background(), session.Session{}, washParams())
	assert.ErrorIs(t, err, internaltypes.ErrUnauthorized)
}

func TestOpen_CatalogFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "server message", err: &backend.Error{Status: 404, Message: "machine is offline"}, wantMsg: "machine is offline"},
		{name: "network", err: errors.New("dial tcp: refused"), wantMsg: catalogFailedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(&fakeBackend{catalogErr: tt.err}, nil, false)

			st, err := svc.Open(context.Background(), alice, washParams())
			var ce *CatalogError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantMsg, ce.Message)
			require.NotNil(t, st)
			assert.True(t, st.Selection.Empty())
			assert.True(t, st.Estimate.IsZero())
			assert.NotEmpty(t, st.CatalogError)

			got, err := svc.Get(context.Background(), alice, st.ID)
			require.NoError(t, err)
			assert.Equal(t, st.CatalogError, got.CatalogError)
		})
	}
}

func TestSelectionChanges_LocalEstimate(t *testing.T) {
	ctx := context.Background()
	svc := newService(&fakeBackend{}, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)
	seq := st.EstimateSeq

	st, err = svc.SelectCourse(ctx, alice, st.ID, "quick")
	require.NoError(t, err)
	assert.Equal(t, laundry.Estimate{TotalPrice: 3000, TotalMinutes: 25}, st.Estimate)
	assert.Greater(t, st.EstimateSeq, seq)

	st, err = svc.ToggleAddOn(ctx, alice, st.ID, "soft")
	require.NoError(t, err)
	st, err = svc.ToggleAddOn(ctx, alice, st.ID, "sterile")
	require.NoError(t, err)
	assert.Equal(t, laundry.Estimate{TotalPrice: 4500, TotalMinutes: 25}, st.Estimate)

	st, err = svc.ToggleAddOn(ctx, alice, st.ID, "soft")
	require.NoError(t, err)
	assert.Equal(t, []string{"sterile"}, st.Selection.AddOnIDs)

	_, err = svc.SelectCourse(ctx, alice, st.ID, "nope")
	assert.ErrorIs(t, err, ErrUnknownOption)
	_, err = svc.SelectDryerTime(ctx, alice, st.ID, "dry30")
	assert.ErrorIs(t, err, ErrUnknownOption, "wash-only dialogs offer no dryer times")

	st, err = svc.Reset(ctx, alice, st.ID)
	require.NoError(t, err)
	assert.True(t, st.Selection.Empty())
	assert.True(t, st.Estimate.IsZero())
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService(&fakeBackend{}, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, internaltypes.ErrNotFound)
	_, err = svc.SelectCourse(ctx, bob, st.ID, "quick")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Close(ctx, bob, st.ID), ErrNotFound)

	require.NoError(t, svc.Close(ctx, alice, st.ID))
	_, err = svc.Get(ctx, alice, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteEstimate(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{estimate: func(machineID string, ids []string) (laundry.Estimate, error) {
		if machineID == "d1" {
			return laundry.Estimate{TotalPrice: 3100, TotalMinutes: 30}, nil
		}
		return laundry.Estimate{TotalPrice: int64(1000 * len(ids)), TotalMinutes: 40}, nil
	}}
	svc := newService(be, nil, true)

	st, err := svc.Open(ctx, alice, OpenParams{StoreID: "s1", WasherID: "w1", DryerID: "d1", Mode: laundry.ModeWashDry})
	require.NoError(t, err)
	assert.False(t, st.EstimatePending)
	assert.Equal(t, laundry.Estimate{TotalPrice: 4100, TotalMinutes: 70}, st.Estimate)

	st, err = svc.Reset(ctx, alice, st.ID)
	require.NoError(t, err)
	assert.False(t, st.EstimatePending, "nothing selected needs no remote call")
	assert.True(t, st.Estimate.IsZero())
}

func TestRemoteEstimate_Failure(t *testing.T) {
	ctx := context.Background()
	fail := false
	be := &fakeBackend{estimate: func(string, []string) (laundry.Estimate, error) {
		if fail {
			return laundry.Estimate{}, &backend.Error{Status: 500}
		}
		return laundry.Estimate{TotalPrice: 4000, TotalMinutes: 40}, nil
	}}
	svc := newService(be, nil, true)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)
	require.Equal(t, int64(4000), st.Estimate.TotalPrice)

	fail = true
	st, err = svc.SelectCourse(ctx, alice, st.ID, "quick")
	var ee *EstimateError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, estimateFailedMessage, ee.Message)
	assert.Equal(t, estimateFailedMessage, st.EstimateError)
	assert.True(t, st.Estimate.IsZero(), "a failed estimate never shows the previous value")
	assert.Equal(t, "quick", st.Selection.CourseID)
}

func TestRemoteEstimate_StaleResponseDiscarded(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	be := &fakeBackend{estimate: func(_ string, ids []string) (laundry.Estimate, error) {
		for _, id := range ids {
			if id == "soft" {
				// the slow, older request
				close(started)
				<-release
				return laundry.Estimate{TotalPrice: 999999, TotalMinutes: 999}, nil
			}
		}
		return laundry.Estimate{TotalPrice: 3000, TotalMinutes: 25}, nil
	}}
	svc := newService(be, nil, true)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)
	id := st.ID

	done := make(chan *State, 1)
	go func() {
		st, err := svc.ToggleAddOn(ctx, alice, id, "soft")
		assert.NoError(t, err)
		done <- st
	}()
	<-started

	// toggling soft back off makes the in-flight request stale
	newer, err := svc.ToggleAddOn(ctx, alice, id, "soft")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), newer.Estimate.TotalPrice)

	close(release)
	older := <-done
	assert.Equal(t, int64(3000), older.Estimate.TotalPrice)

	final, err := svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, laundry.Estimate{TotalPrice: 3000, TotalMinutes: 25}, final.Estimate)
	assert.False(t, final.EstimatePending)
}

func TestSubmit_Success(t *testing.T) {
	ctx := context.Background()
	var sent laundry.ReservationRequest
	be := &fakeBackend{reserve: func(req laundry.ReservationRequest) (backend.Confirmation, error) {
		sent = req
		return backend.Confirmation{Message: "See you soon", ReservationID: "r-42"}, nil
	}}
	rec := &fakeRecorder{}
	svc := newService(be, rec, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)
	_, err = svc.ToggleAddOn(ctx, alice, st.ID, "soft")
	require.NoError(t, err)

	res, err := svc.Submit(ctx, alice, st.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Message: "See you soon", ReservationID: "r-42", Redirect: "/reservations"}, res)
	assert.Equal(t, laundry.ReservationRequest{
		StoreID: "s1", WasherID: "w1", Mode: laundry.ModeWash,
		OptionIDs: []string{"std", "soft"}, TotalPrice: 4500, TotalMinutes: 40,
	}, sent)

	require.Len(t, rec.created, 1)
	assert.Equal(t, "alice", rec.created[0].UserID)
	for _, status := range rec.results {
		assert.Equal(t, submissions.StatusSucceeded, status)
	}

	_, err = svc.Get(ctx, alice, st.ID)
	assert.ErrorIs(t, err, ErrNotFound, "dialog closes after a reservation")
}

func TestSubmit_FailureKeepsSelection(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{reserve: func(laundry.ReservationRequest) (backend.Confirmation, error) {
		return backend.Confirmation{}, &backend.Error{Status: 409, Message: "machine already booked"}
	}}
	svc := newService(be, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, alice, st.ID)
	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "machine already booked", se.Message)

	got, err := svc.Get(ctx, alice, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "std", got.Selection.CourseID)
	assert.Equal(t, "machine already booked", got.SubmitError)

	// no automatic retry, but the customer may press submit again
	be.reserve = nil
	_, err = svc.Submit(ctx, alice, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&be.reserveCalls))
}

func TestSubmit_GenericMessage(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{reserve: func(laundry.ReservationRequest) (backend.Confirmation, error) {
		return backend.Confirmation{}, errors.New("connection reset")
	}}
	svc := newService(be, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, alice, st.ID)
	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, submitFailedMessage, se.Message)
}

func TestSubmit_NothingSelected(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{}
	svc := newService(be, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)
	_, err = svc.Reset(ctx, alice, st.ID)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, alice, st.ID)
	assert.ErrorIs(t, err, laundry.ErrNothingSelected)
	assert.Zero(t, atomic.LoadInt32(&be.reserveCalls))
}

func TestSubmit_DoubleSubmitSendsOnce(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	be := &fakeBackend{reserve: func(laundry.ReservationRequest) (backend.Confirmation, error) {
		close(entered)
		<-release
		return backend.Confirmation{Message: "ok"}, nil
	}}
	svc := newService(be, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, alice, st.ID)
		errs <- err
	}()
	<-entered

	_, err = svc.Submit(ctx, alice, st.ID)
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, err, internaltypes.ErrConflict)

	close(release)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), atomic.LoadInt32(&be.reserveCalls))
}

// gatedStore parks the first AcquireSubmit caller until proceed is closed.
type gatedStore struct {
	Store
	calls   int32
	arrived chan struct{}
	proceed chan struct{}
}

func (g *gatedStore) AcquireSubmit(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.arrived)
		<-g.proceed
	}
	return g.Store.AcquireSubmit(ctx, id, ttl)
}

func TestSubmit_LateSecondSubmitAfterCompletion(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{}
	svc := newService(be, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)

	gs := &gatedStore{Store: svc.store, arrived: make(chan struct{}), proceed: make(chan struct{})}
	svc.store = gs

	late := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, alice, st.ID)
		late <- err
	}()
	<-gs.arrived

	res, err := svc.Submit(ctx, alice, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "/reservations", res.Redirect)

	close(gs.proceed)
	assert.ErrorIs(t, <-late, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&be.reserveCalls))
}

func TestSubmit_UsesSelectionCurrentUnderLock(t *testing.T) {
	ctx := context.Background()
	var sent laundry.ReservationRequest
	be := &fakeBackend{reserve: func(req laundry.ReservationRequest) (backend.Confirmation, error) {
		sent = req
		return backend.Confirmation{Message: "ok"}, nil
	}}
	svc := newService(be, nil, false)
	st, err := svc.Open(ctx, alice, washParams())
	require.NoError(t, err)

	gs := &gatedStore{Store: svc.store, arrived: make(chan struct{}), proceed: make(chan struct{})}
	svc.store = gs

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, alice, st.ID)
		done <- err
	}()
	<-gs.arrived

	_, err = svc.SelectCourse(ctx, alice, st.ID, "quick")
	require.NoError(t, err)
	close(gs.proceed)

	require.NoError(t, <-done)
	assert.Equal(t, []string{"quick"}, sent.OptionIDs)
	assert.Equal(t, int64(3000), sent.TotalPrice)
}
