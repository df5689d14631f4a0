package service

import (
	"context"
	"errors"
	"testing"
	"time"
	bookingserrors "turfbook/internal/bookings/errors"
	"turfbook/internal/bookings/validator"
	sloterrors "turfbook/internal/slots/errors"
	"turfbook/pkg/config"
	mongotx "turfbook/pkg/db/mongo"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"
	"turfbook/pkg/retry"
)

// ledgerState is a tiny in-memory stand-in for the two collections. Each
// transaction runs against a copy and commits only on success, mirroring
// the all-or-nothing semantics the Mongo session gives the real code.
type ledgerState struct {
	slot     model.Slot
	bookings map[string]*model.Booking
	nextID   int
}

func (s *ledgerState) clone() *ledgerState {
	copied := &ledgerState{
		slot:     s.slot,
		bookings: make(map[string]*model.Booking, len(s.bookings)),
		nextID:   s.nextID,
	}
	for id, b := range s.bookings {
		dup := *b
		copied.bookings[id] = &dup
	}
	return copied
}

type fakeStore struct {
	state *ledgerState

	// pending points at the transaction's working copy while one is open.
	pending *ledgerState

	failCreate bool
	failSlot   bool
}

func (f *fakeStore) current() *ledgerState {
	if f.pending != nil {
		return f.pending
	}
	return f.state
}

func (f *fakeStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	f.pending = f.state.clone()
	err := fn(nil)
	if err != nil {
		f.pending = nil
		return err
	}
	f.state = f.pending
	f.pending = nil
	return nil
}

// --- BookingRepository ---

func (f *fakeStore) Create(ctx context.Context, booking *model.Booking) error {
	if f.failCreate {
		return errors.New("write conflict injected after slot update")
	}
	st := f.current()
	st.nextID++
	booking.ID = newHexID(st.nextID)
	dup := *booking
	st.bookings[booking.ID] = &dup
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	b, ok := f.current().bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	dup := *b
	return &dup, nil
}

func (f *fakeStore) FindConfirmedBySlotID(ctx context.Context, slotID string) (*model.Booking, error) {
	for _, b := range f.current().bookings {
		if b.SlotID == slotID && b.BookingStatus == model.BookingConfirmed {
			dup := *b
			return &dup, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeStore) FindByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range f.current().bookings {
		if b.CustomerID == customerID {
			dup := *b
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (f *fakeStore) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	bookings, _ := f.FindByCustomer(ctx, customerID, 0, 0)
	return int64(len(bookings)), nil
}

func (f *fakeStore) MarkCancelled(ctx context.Context, id string, cancelledBy string, reason string, now time.Time) (bool, error) {
	b, ok := f.current().bookings[id]
	if !ok || b.BookingStatus != model.BookingConfirmed {
		return false, nil
	}
	b.BookingStatus = model.BookingCancelled
	b.CancelledAt = &now
	b.CancelledBy = cancelledBy
	b.CancellationReason = reason
	return true, nil
}

func (f *fakeStore) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus, now time.Time) error {
	b, ok := f.current().bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	b.PaymentStatus = status
	return nil
}

// --- SlotRepository ---

func (f *fakeStore) FindSlotByID(ctx context.Context, id string) (*model.Slot, error) {
	st := f.current()
	if st.slot.ID != id {
		return nil, sloterrors.ErrNotFound
	}
	dup := st.slot
	return &dup, nil
}

func (f *fakeStore) MarkBooked(ctx context.Context, id string, holderID string, now time.Time) (*model.Slot, error) {
	if f.failSlot {
		return nil, apperrors.Transient("connection reset", nil)
	}
	st := f.current()
	if st.slot.ID != id {
		return nil, sloterrors.ErrUnavailable
	}
	if !st.slot.Reservable(now) && !st.slot.HeldBy(holderID, now) {
		return nil, sloterrors.ErrUnavailable
	}
	st.slot.Status = model.SlotBooked
	st.slot.ReservedBy = ""
	st.slot.ReservedUntil = nil
	st.slot.Version++
	dup := st.slot
	return &dup, nil
}

func (f *fakeStore) ForceAvailable(ctx context.Context, id string, now time.Time) error {
	st := f.current()
	if st.slot.ID != id {
		return sloterrors.ErrNotFound
	}
	st.slot.Status = model.SlotAvailable
	st.slot.ReservedBy = ""
	st.slot.ReservedUntil = nil
	st.slot.Version++
	return nil
}

func newHexID(n int) string {
	const hex = "0123456789abcdef"
	id := make([]byte, 24)
	for i := range id {
		id[i] = hex[0]
	}
	for i := 23; n > 0 && i >= 0; i-- {
		id[i] = hex[n%16]
		n /= 16
	}
	return string(id)
}

// slotRepoAdapter exposes only what the booking service uses from the
// slot repository, backed by the shared fake store.
type slotRepoAdapter struct {
	*fakeStore
}

func (a slotRepoAdapter) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	return a.FindSlotByID(ctx, id)
}

func (a slotRepoAdapter) FindByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, error) {
	return nil, nil
}

func (a slotRepoAdapter) CountByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus) (int64, error) {
	return 0, nil
}

func (a slotRepoAdapter) Reserve(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
	return nil, sloterrors.ErrUnavailable
}

func (a slotRepoAdapter) Release(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (a slotRepoAdapter) BookDirect(ctx context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}

func (a slotRepoAdapter) Block(ctx context.Context, id string, blockedBy string, reason string, now time.Time) (bool, error) {
	return false, nil
}

func (a slotRepoAdapter) Unblock(ctx context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}

const testSlotID = "507f1f77bcf86cd799439011"

func newTestStore(status model.SlotStatus) *fakeStore {
	return &fakeStore{
		state: &ledgerState{
			slot: model.Slot{
				ID:        testSlotID,
				TurfID:    "turf-1",
				TurfName:  "Greenfield Arena",
				NetNumber: 2,
				Date:      "2026-05-01",
				StartTime: "18:00",
				EndTime:   "19:00",
				Status:    status,
				Price:     1200,
			},
			bookings: make(map[string]*model.Booking),
		},
	}
}

func newTestBookingService(store *fakeStore) *bookingService {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.FormatJSON,
		Service: "test",
	})

	cfg := &config.Config{Log: log}

	return &bookingService{
		repo:      store,
		slotRepo:  slotRepoAdapter{store},
		validator: validator.NewBookingValidator(log),
		retryer: retry.New(retry.Config{
			MaxAttempts: 4,
			BaseDelay:   time.Millisecond,
			MaxJitter:   time.Millisecond,
			Log:         log,
		}),
		cfg: cfg,
		now: time.Now,
	}
}

func testBooking() *model.Booking {
	return &model.Booking{
		SlotID:        testSlotID,
		TurfID:        "turf-1",
		CustomerID:    "customer-1",
		CustomerName:  "Rahul Sharma",
		CustomerPhone: "+919812345678",
		Amount:        1200,
		AdvanceAmount: 300,
		PaymentStatus: model.PaymentPending,
	}
}

func TestConfirm_BooksSlotAndInsertsLedgerEntry(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	svc := newTestBookingService(store)

	bookingID, err := svc.Confirm(context.Background(), "customer-1", testBooking())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bookingID == "" {
		t.Fatal("expected a booking ID")
	}

	if store.state.slot.Status != model.SlotBooked {
		t.Errorf("expected slot status %q, got %q", model.SlotBooked, store.state.slot.Status)
	}

	b, ok := store.state.bookings[bookingID]
	if !ok {
		t.Fatal("booking not persisted")
	}
	if b.BookingStatus != model.BookingConfirmed {
		t.Errorf("expected booking status %q, got %q", model.BookingConfirmed, b.BookingStatus)
	}
	if b.SlotID != testSlotID {
		t.Errorf("booking references slot %q", b.SlotID)
	}
	if b.TurfName != "Greenfield Arena" || b.Date != "2026-05-01" || b.StartTime != "18:00" {
		t.Errorf("schedule snapshot not copied from slot: %+v", b)
	}
}

func TestConfirm_NoPartialStateOnFault(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	store.failCreate = true
	svc := newTestBookingService(store)

	_, err := svc.Confirm(context.Background(), "customer-1", testBooking())
	if err == nil {
		t.Fatal("expected error from injected fault")
	}

	// The slot write inside the aborted transaction must not be visible.
	if store.state.slot.Status != model.SlotAvailable {
		t.Errorf("slot mutated by aborted transaction: status=%q", store.state.slot.Status)
	}
	if len(store.state.bookings) != 0 {
		t.Errorf("booking persisted by aborted transaction: %d entries", len(store.state.bookings))
	}
}

func TestConfirm_ConflictOnBookedSlot(t *testing.T) {
	store := newTestStore(model.SlotBooked)
	svc := newTestBookingService(store)

	_, err := svc.Confirm(context.Background(), "customer-1", testBooking())
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("expected code %q, got %q (err=%v)", apperrors.CodeConflict, apperrors.CodeOf(err), err)
	}
	if len(store.state.bookings) != 0 {
		t.Error("no booking may be created against a booked slot")
	}
}

func TestConfirm_OwnHoldCommits(t *testing.T) {
	store := newTestStore(model.SlotReserved)
	until := time.Now().Add(10 * time.Minute)
	store.state.slot.ReservedBy = "customer-1"
	store.state.slot.ReservedUntil = &until
	svc := newTestBookingService(store)

	if _, err := svc.Confirm(context.Background(), "customer-1", testBooking()); err != nil {
		t.Fatalf("holder must be able to confirm their own hold: %v", err)
	}
}

func TestConfirm_ForeignLiveHoldRejected(t *testing.T) {
	store := newTestStore(model.SlotReserved)
	until := time.Now().Add(10 * time.Minute)
	store.state.slot.ReservedBy = "customer-9"
	store.state.slot.ReservedUntil = &until
	svc := newTestBookingService(store)

	_, err := svc.Confirm(context.Background(), "customer-1", testBooking())
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("expected conflict against someone else's live hold, got %v", err)
	}
}

func TestConfirm_ExpiredForeignHoldCommits(t *testing.T) {
	store := newTestStore(model.SlotReserved)
	until := time.Now().Add(-time.Minute)
	store.state.slot.ReservedBy = "customer-9"
	store.state.slot.ReservedUntil = &until
	svc := newTestBookingService(store)

	if _, err := svc.Confirm(context.Background(), "customer-1", testBooking()); err != nil {
		t.Fatalf("expired hold must not block confirmation: %v", err)
	}
}

func TestConfirm_ValidationRejectedBeforeStore(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	svc := newTestBookingService(store)

	booking := testBooking()
	booking.CustomerName = ""
	booking.AdvanceAmount = 5000 // exceeds amount

	_, err := svc.Confirm(context.Background(), "customer-1", booking)
	if apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.state.slot.Status != model.SlotAvailable {
		t.Error("validation failure must not touch the store")
	}
}

func TestConfirm_RetriesTransientThenSucceeds(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	store.failSlot = true
	svc := newTestBookingService(store)

	attempts := 0
	origNow := svc.now
	svc.now = func() time.Time {
		attempts++
		if attempts >= 3 {
			store.failSlot = false
		}
		return origNow()
	}

	if _, err := svc.Confirm(context.Background(), "customer-1", testBooking()); err != nil {
		t.Fatalf("expected success after transient failures: %v", err)
	}
	if store.state.slot.Status != model.SlotBooked {
		t.Error("slot not booked after retries")
	}
}

func TestCancel_Idempotent(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	svc := newTestBookingService(store)

	bookingID, err := svc.Confirm(context.Background(), "customer-1", testBooking())
	if err != nil {
		t.Fatalf("setup confirm failed: %v", err)
	}

	ok, err := svc.Cancel(context.Background(), bookingID, testSlotID, "owner-1", "customer no-show")
	if err != nil {
		t.Fatalf("first cancel: unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("first cancel must return true")
	}
	if store.state.slot.Status != model.SlotAvailable {
		t.Errorf("slot must be reopened, got %q", store.state.slot.Status)
	}
	b := store.state.bookings[bookingID]
	if b.BookingStatus != model.BookingCancelled {
		t.Errorf("expected booking status %q, got %q", model.BookingCancelled, b.BookingStatus)
	}
	if b.CancelledBy != "owner-1" || b.CancellationReason != "customer no-show" {
		t.Errorf("cancellation metadata not recorded: %+v", b)
	}

	versionAfterFirst := store.state.slot.Version

	ok, err = svc.Cancel(context.Background(), bookingID, testSlotID, "owner-1", "again")
	if err != nil {
		t.Fatalf("second cancel: unexpected error: %v", err)
	}
	if ok {
		t.Error("second cancel must return false")
	}
	if store.state.slot.Version != versionAfterFirst {
		t.Error("second cancel must not touch the slot")
	}
}

func TestCancel_UnknownBookingIsNotFound(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	svc := newTestBookingService(store)

	_, err := svc.Cancel(context.Background(), newHexID(99), testSlotID, "owner-1", "")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	store := newTestStore(model.SlotAvailable)
	svc := newTestBookingService(store)

	bookingID, err := svc.Confirm(context.Background(), "customer-1", testBooking())
	if err != nil {
		t.Fatalf("setup confirm failed: %v", err)
	}

	if err := svc.UpdatePaymentStatus(context.Background(), bookingID, model.PaymentPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.state.bookings[bookingID].PaymentStatus; got != model.PaymentPaid {
		t.Errorf("expected payment status %q, got %q", model.PaymentPaid, got)
	}

	if err := svc.UpdatePaymentStatus(context.Background(), bookingID, "refunded"); apperrors.CodeOf(err) != apperrors.CodeInvalidInput {
		t.Errorf("unknown payment status must be rejected, got %v", err)
	}
}
