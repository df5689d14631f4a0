package service

import (
	"context"
	"sync"
	"testing"
	"time"
	sloterrors "turfbook/internal/slots/errors"
	"turfbook/pkg/config"
	mongotx "turfbook/pkg/db/mongo"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/logger"
	"turfbook/pkg/model"
	"turfbook/pkg/retry"
)

// Mock repository for testing
type mockSlotRepository struct {
	findByIDFunc       func(ctx context.Context, id string) (*model.Slot, error)
	findByTurfDateFunc func(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, error)
	countFunc          func(ctx context.Context, turfID string, date string, status model.SlotStatus) (int64, error)
	reserveFunc        func(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error)
	releaseFunc        func(ctx context.Context, id string) (bool, error)
	markBookedFunc     func(ctx context.Context, id string, holderID string, now time.Time) (*model.Slot, error)
	bookDirectFunc     func(ctx context.Context, id string, now time.Time) (bool, error)
	forceAvailableFunc func(ctx context.Context, id string, now time.Time) error
	blockFunc          func(ctx context.Context, id string, blockedBy string, reason string, now time.Time) (bool, error)
	unblockFunc        func(ctx context.Context, id string, now time.Time) (bool, error)
}

func (m *mockSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, sloterrors.ErrNotFound
}

func (m *mockSlotRepository) FindByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, error) {
	if m.findByTurfDateFunc != nil {
		return m.findByTurfDateFunc(ctx, turfID, date, status, limit, offset)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepository) CountByTurfDate(ctx context.Context, turfID string, date string, status model.SlotStatus) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, turfID, date, status)
	}
	return 0, nil
}

func (m *mockSlotRepository) Reserve(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, id, holderID, until, now)
	}
	return nil, sloterrors.ErrUnavailable
}

func (m *mockSlotRepository) Release(ctx context.Context, id string) (bool, error) {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, id)
	}
	return false, nil
}

func (m *mockSlotRepository) MarkBooked(ctx context.Context, id string, holderID string, now time.Time) (*model.Slot, error) {
	if m.markBookedFunc != nil {
		return m.markBookedFunc(ctx, id, holderID, now)
	}
	return nil, sloterrors.ErrUnavailable
}

func (m *mockSlotRepository) BookDirect(ctx context.Context, id string, now time.Time) (bool, error) {
	if m.bookDirectFunc != nil {
		return m.bookDirectFunc(ctx, id, now)
	}
	return false, nil
}

func (m *mockSlotRepository) ForceAvailable(ctx context.Context, id string, now time.Time) error {
	if m.forceAvailableFunc != nil {
		return m.forceAvailableFunc(ctx, id, now)
	}
	return nil
}

func (m *mockSlotRepository) Block(ctx context.Context, id string, blockedBy string, reason string, now time.Time) (bool, error) {
	if m.blockFunc != nil {
		return m.blockFunc(ctx, id, blockedBy, reason, now)
	}
	return false, nil
}

func (m *mockSlotRepository) Unblock(ctx context.Context, id string, now time.Time) (bool, error) {
	if m.unblockFunc != nil {
		return m.unblockFunc(ctx, id, now)
	}
	return false, nil
}

func (m *mockSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// slotTable is an in-memory stand-in for the store's conditional update:
// the mutex makes each Reserve check-and-write indivisible, mirroring the
// single filtered update the real repository issues.
type slotTable struct {
	mu   sync.Mutex
	slot model.Slot
}

func (t *slotTable) reserve(id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slot.ID != id {
		return nil, sloterrors.ErrNotFound
	}
	if !t.slot.Reservable(now) {
		return nil, sloterrors.ErrUnavailable
	}

	t.slot.Status = model.SlotReserved
	t.slot.ReservedBy = holderID
	u := until
	t.slot.ReservedUntil = &u
	t.slot.Version++
	copied := t.slot
	return &copied, nil
}

func newTestService(repo *mockSlotRepository) *slotService {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.FormatJSON,
		Service: "test",
	})

	cfg := &config.Config{
		Log:                log,
		DefaultHoldMinutes: 10,
		MinHoldMinutes:     1,
		MaxHoldMinutes:     60,
	}

	return &slotService{
		repo: repo,
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

func TestReserve_AtMostOneWinner(t *testing.T) {
	table := &slotTable{
		slot: model.Slot{ID: "507f1f77bcf86cd799439011", Status: model.SlotAvailable},
	}

	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
			return table.reserve(id, holderID, until, now)
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			table.mu.Lock()
			defer table.mu.Unlock()
			copied := table.slot
			return &copied, nil
		},
	}
	svc := newTestService(repo)

	const holders = 16
	results := make(chan bool, holders)
	var wg sync.WaitGroup
	wg.Add(holders)

	for i := 0; i < holders; i++ {
		holder := string(rune('A' + i))
		go func() {
			defer wg.Done()
			ok, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", holder, 10)
			if err != nil {
				t.Errorf("holder %s: unexpected error: %v", holder, err)
			}
			results <- ok
		}()
	}

	wg.Wait()
	close(results)

	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}

	if winners != 1 {
		t.Errorf("expected exactly 1 winner among %d concurrent reservers, got %d", holders, winners)
	}
	if table.slot.Status != model.SlotReserved {
		t.Errorf("expected slot status %q, got %q", model.SlotReserved, table.slot.Status)
	}
}

func TestReserve_ExpiryEnablesRereservation(t *testing.T) {
	clock := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	table := &slotTable{
		slot: model.Slot{ID: "507f1f77bcf86cd799439011", Status: model.SlotAvailable},
	}
	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
			return table.reserve(id, holderID, until, now)
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			copied := table.slot
			return &copied, nil
		},
	}
	svc := newTestService(repo)
	svc.now = func() time.Time { return clock }

	ok, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "holder-a", 1)
	if err != nil || !ok {
		t.Fatalf("first reserve: expected success, got ok=%v err=%v", ok, err)
	}

	// Before expiry a second holder is rejected.
	ok, err = svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "holder-b", 1)
	if err != nil {
		t.Fatalf("contested reserve: unexpected error: %v", err)
	}
	if ok {
		t.Fatal("contested reserve: expected false while hold is live")
	}

	// 61 seconds later the one-minute hold has lapsed.
	clock = clock.Add(61 * time.Second)

	ok, err = svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "holder-b", 1)
	if err != nil {
		t.Fatalf("post-expiry reserve: unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("post-expiry reserve: expected success after hold lapsed")
	}
	if table.slot.ReservedBy != "holder-b" {
		t.Errorf("expected holder-b to own the slot, got %q", table.slot.ReservedBy)
	}
}

func TestReserve_ConflictOnBookedSlot(t *testing.T) {
	booked := model.Slot{ID: "507f1f77bcf86cd799439011", Status: model.SlotBooked, Version: 3}

	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
			return nil, sloterrors.ErrUnavailable
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			copied := booked
			return &copied, nil
		},
	}
	svc := newTestService(repo)

	for _, holder := range []string{"holder-a", "holder-b"} {
		ok, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", holder, 10)
		if err != nil {
			t.Fatalf("holder %s: unexpected error: %v", holder, err)
		}
		if ok {
			t.Errorf("holder %s: expected false against a booked slot", holder)
		}
	}

	if booked.Version != 3 {
		t.Errorf("booked slot must not be mutated, version changed to %d", booked.Version)
	}
}

func TestReserve_NotFound(t *testing.T) {
	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
			return nil, sloterrors.ErrUnavailable
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			return nil, sloterrors.ErrNotFound
		},
	}
	svc := newTestService(repo)

	ok, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "holder-a", 10)
	if ok {
		t.Error("expected false for missing slot")
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected code %q, got %q (err=%v)", apperrors.CodeNotFound, apperrors.CodeOf(err), err)
	}
}

func TestReserve_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	until := time.Now().Add(10 * time.Minute)

	repo := &mockSlotRepository{
		reserveFunc: func(ctx context.Context, id string, holderID string, u time.Time, now time.Time) (*model.Slot, error) {
			attempts++
			if attempts < 3 {
				return nil, apperrors.Transient("connection dropped", nil)
			}
			return &model.Slot{ID: id, Status: model.SlotReserved, ReservedBy: holderID, ReservedUntil: &until}, nil
		},
	}
	svc := newTestService(repo)

	ok, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "holder-a", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected reserve to succeed after transient failures")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestReserve_HoldClamping(t *testing.T) {
	tests := []struct {
		name        string
		holdMinutes int
		wantMinutes int
	}{
		{name: "zero uses default", holdMinutes: 0, wantMinutes: 10},
		{name: "negative uses default", holdMinutes: -5, wantMinutes: 10},
		{name: "below minimum clamps up", holdMinutes: 0, wantMinutes: 10},
		{name: "above maximum clamps down", holdMinutes: 600, wantMinutes: 60},
		{name: "in range passes through", holdMinutes: 15, wantMinutes: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUntil, gotNow time.Time
			repo := &mockSlotRepository{
				reserveFunc: func(ctx context.Context, id string, holderID string, until time.Time, now time.Time) (*model.Slot, error) {
					gotUntil, gotNow = until, now
					return &model.Slot{ID: id}, nil
				},
			}
			svc := newTestService(repo)

			ok, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "holder-a", tt.holdMinutes)
			if err != nil || !ok {
				t.Fatalf("expected success, got ok=%v err=%v", ok, err)
			}

			got := gotUntil.Sub(gotNow)
			want := time.Duration(tt.wantMinutes) * time.Minute
			if got != want {
				t.Errorf("expected hold %s, got %s", want, got)
			}
		})
	}
}

func TestReserve_ValidatesInput(t *testing.T) {
	svc := newTestService(&mockSlotRepository{})

	if _, err := svc.Reserve(context.Background(), "", "holder-a", 10); apperrors.CodeOf(err) != apperrors.CodeInvalidInput {
		t.Errorf("empty slot ID: expected invalid input, got %v", err)
	}
	if _, err := svc.Reserve(context.Background(), "507f1f77bcf86cd799439011", "", 10); apperrors.CodeOf(err) != apperrors.CodeInvalidInput {
		t.Errorf("empty holder ID: expected invalid input, got %v", err)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	calls := 0
	repo := &mockSlotRepository{
		releaseFunc: func(ctx context.Context, id string) (bool, error) {
			calls++
			return calls == 1, nil
		},
	}
	svc := newTestService(repo)

	if err := svc.Release(context.Background(), "507f1f77bcf86cd799439011"); err != nil {
		t.Fatalf("first release: unexpected error: %v", err)
	}
	if err := svc.Release(context.Background(), "507f1f77bcf86cd799439011"); err != nil {
		t.Fatalf("second release must be a no-op, got error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 repository calls, got %d", calls)
	}
}

func TestBlock_OnlyFromAvailable(t *testing.T) {
	reserved := time.Now().Add(10 * time.Minute)
	tests := []struct {
		name    string
		slot    model.Slot
		matched bool
		want    bool
	}{
		{
			name:    "available slot blocks",
			slot:    model.Slot{ID: "507f1f77bcf86cd799439011", Status: model.SlotAvailable},
			matched: true,
			want:    true,
		},
		{
			name:    "booked slot rejected",
			slot:    model.Slot{ID: "507f1f77bcf86cd799439011", Status: model.SlotBooked},
			matched: false,
			want:    false,
		},
		{
			name:    "live reservation rejected",
			slot:    model.Slot{ID: "507f1f77bcf86cd799439011", Status: model.SlotReserved, ReservedBy: "holder-a", ReservedUntil: &reserved},
			matched: false,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSlotRepository{
				blockFunc: func(ctx context.Context, id string, blockedBy string, reason string, now time.Time) (bool, error) {
					return tt.matched, nil
				},
				findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
					copied := tt.slot
					return &copied, nil
				},
			}
			svc := newTestService(repo)

			got, err := svc.Block(context.Background(), tt.slot.ID, "owner-1", "maintenance")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBook_LegacyDirectTransition(t *testing.T) {
	repo := &mockSlotRepository{
		bookDirectFunc: func(ctx context.Context, id string, now time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(repo)

	ok, err := svc.Book(context.Background(), "507f1f77bcf86cd799439011")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected direct booking of an available slot to succeed")
	}
}
