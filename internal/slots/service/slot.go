package service

import (
	"context"
	"errors"
	"sync"
	"time"
	sloterrors "turfbook/internal/slots/errors"
	"turfbook/internal/slots/repository"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/kafka"
	"turfbook/pkg/model"
	"turfbook/pkg/retry"
	"turfbook/pkg/sanitizer"
)

// Event types published to the booking events topic.
const (
	EventSlotBlocked   = "slot.blocked"
	EventSlotUnblocked = "slot.unblocked"
)

type SlotService interface {
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	Search(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, int64, error)
	Reserve(ctx context.Context, slotID string, holderID string, holdMinutes int) (bool, error)
	Release(ctx context.Context, slotID string) error
	Book(ctx context.Context, slotID string) (bool, error)
	Block(ctx context.Context, slotID string, blockedBy string, reason string) (bool, error)
	Unblock(ctx context.Context, slotID string) (bool, error)
}

type slotService struct {
	repo     repository.SlotRepository
	retryer  *retry.Executor
	producer *kafka.Producer
	cfg      *config.Config
	now      func() time.Time
}

// NewSlotService builds the reservation coordinator. producer may be nil,
// in which case events are skipped.
func NewSlotService(
	repo repository.SlotRepository,
	retryer *retry.Executor,
	producer *kafka.Producer,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:     repo,
		retryer:  retryer,
		producer: producer,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(id, err)
	}

	return slot, nil
}

func (s *slotService) Search(ctx context.Context, turfID string, date string, status model.SlotStatus, limit int, offset int64) ([]*model.Slot, int64, error) {
	if turfID == "" {
		return nil, 0, apperrors.InvalidInput("TurfID is required")
	}

	var count int64
	var slots []*model.Slot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByTurfDate(ctx, turfID, date, status)
		if err != nil {
			s.cfg.Log.Error("Failed to count slots", "turf_id", turfID, "date", date, "error", err)
			errCount = apperrors.Internal("Failed to count slots", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		slots, err = s.repo.FindByTurfDate(ctx, turfID, date, status, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to search slots", "turf_id", turfID, "date", date, "error", err)
			errFind = apperrors.Internal("Failed to search slots", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return slots, count, nil
}

// Reserve attempts to place a time-bounded hold on the slot. Returns
// false, without an error, when the slot is booked, blocked, or under
// someone else's live hold; losing the race is a normal outcome.
func (s *slotService) Reserve(ctx context.Context, slotID string, holderID string, holdMinutes int) (bool, error) {
	if slotID == "" {
		return false, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if holderID == "" {
		return false, apperrors.InvalidInput("Holder ID cannot be empty")
	}

	hold := s.clampHold(holdMinutes)

	err := s.retryer.Do(ctx, "reserve_slot", func(ctx context.Context) error {
		now := s.now().UTC()
		_, err := s.repo.Reserve(ctx, slotID, holderID, now.Add(hold), now)
		return err
	})
	if err != nil {
		if errors.Is(err, sloterrors.ErrUnavailable) {
			return false, s.confirmContested(ctx, slotID)
		}
		return false, s.mapLookupError(slotID, err)
	}

	s.cfg.Log.Info("Slot reserved",
		"slot_id", slotID,
		"reserved_by", holderID,
		"hold_minutes", int(hold.Minutes()),
	)
	return true, nil
}

// Release drops any hold on the slot. Idempotent: releasing a slot that
// is already available, booked, or blocked changes nothing.
func (s *slotService) Release(ctx context.Context, slotID string) error {
	if slotID == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	var released bool
	err := s.retryer.Do(ctx, "release_slot", func(ctx context.Context) error {
		var err error
		released, err = s.repo.Release(ctx, slotID)
		return err
	})
	if err != nil {
		return s.mapLookupError(slotID, err)
	}

	s.cfg.Log.Info("Slot release processed", "slot_id", slotID, "released", released)
	return nil
}

// Book performs the direct available-to-booked transition without a
// ledger entry.
//
// Deprecated: kept for callers of the legacy two-step flow; the atomic
// booking path is canonical.
func (s *slotService) Book(ctx context.Context, slotID string) (bool, error) {
	if slotID == "" {
		return false, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	var booked bool
	err := s.retryer.Do(ctx, "book_slot", func(ctx context.Context) error {
		var err error
		booked, err = s.repo.BookDirect(ctx, slotID, s.now().UTC())
		return err
	})
	if err != nil {
		return false, s.mapLookupError(slotID, err)
	}

	if !booked {
		return false, s.confirmContested(ctx, slotID)
	}

	s.cfg.Log.Info("Slot booked directly", "slot_id", slotID)
	return true, nil
}

func (s *slotService) Block(ctx context.Context, slotID string, blockedBy string, reason string) (bool, error) {
	if slotID == "" {
		return false, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if blockedBy == "" {
		return false, apperrors.InvalidInput("BlockedBy cannot be empty")
	}
	reason = sanitizer.SanitizeReason(reason)

	var blocked bool
	err := s.retryer.Do(ctx, "block_slot", func(ctx context.Context) error {
		var err error
		blocked, err = s.repo.Block(ctx, slotID, blockedBy, reason, s.now().UTC())
		return err
	})
	if err != nil {
		return false, s.mapLookupError(slotID, err)
	}

	if !blocked {
		return false, s.confirmContested(ctx, slotID)
	}

	s.cfg.Log.Info("Slot blocked", "slot_id", slotID, "blocked_by", blockedBy)
	s.publishSlotEvent(ctx, EventSlotBlocked, slotID, blockedBy, reason)
	return true, nil
}

func (s *slotService) Unblock(ctx context.Context, slotID string) (bool, error) {
	if slotID == "" {
		return false, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	var unblocked bool
	err := s.retryer.Do(ctx, "unblock_slot", func(ctx context.Context) error {
		var err error
		unblocked, err = s.repo.Unblock(ctx, slotID, s.now().UTC())
		return err
	})
	if err != nil {
		return false, s.mapLookupError(slotID, err)
	}

	if !unblocked {
		return false, s.confirmContested(ctx, slotID)
	}

	s.cfg.Log.Info("Slot unblocked", "slot_id", slotID)
	s.publishSlotEvent(ctx, EventSlotUnblocked, slotID, "", "")
	return true, nil
}

// --- Helpers ---

// clampHold normalizes a requested hold duration into the configured
// bounds; zero or negative means the default.
func (s *slotService) clampHold(holdMinutes int) time.Duration {
	if holdMinutes <= 0 {
		holdMinutes = s.cfg.DefaultHoldMinutes
	}
	if holdMinutes < s.cfg.MinHoldMinutes {
		holdMinutes = s.cfg.MinHoldMinutes
	}
	if holdMinutes > s.cfg.MaxHoldMinutes {
		holdMinutes = s.cfg.MaxHoldMinutes
	}
	return time.Duration(holdMinutes) * time.Minute
}

// confirmContested distinguishes "slot is in a non-matching state" from
// "slot does not exist" after a conditional write matched nothing. The
// follow-up read is advisory only; the failed write already decided the
// outcome atomically.
func (s *slotService) confirmContested(ctx context.Context, slotID string) error {
	_, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		return s.mapLookupError(slotID, err)
	}
	return nil
}

func (s *slotService) mapLookupError(slotID string, err error) error {
	switch {
	case errors.Is(err, sloterrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot", slotID)
	case errors.Is(err, sloterrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid slot ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Slot store operation failed", err)
	}
}

type slotEventPayload struct {
	SlotID    string    `json:"slot_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// publishSlotEvent emits a state-change event. Publishing is best-effort;
// the state transition has already committed and is never rolled back
// because a broker was unreachable.
func (s *slotService) publishSlotEvent(ctx context.Context, eventType string, slotID string, actorID string, reason string) {
	if s.producer == nil || !s.cfg.EventsEnabled {
		return
	}

	msg := kafka.NewMessage().
		WithKey(slotID).
		WithEventType(eventType).
		WithSource("slots").
		WithValue(slotEventPayload{
			SlotID:    slotID,
			ActorID:   actorID,
			Reason:    reason,
			Timestamp: s.now().UTC(),
		}).
		Build()

	if err := s.producer.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish slot event", "event_type", eventType, "slot_id", slotID, "error", err)
	}
}
