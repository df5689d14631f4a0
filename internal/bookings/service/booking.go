package service

import (
	"context"
	"errors"
	"sync"
	"time"
	bookingserrors "turfbook/internal/bookings/errors"
	"turfbook/internal/bookings/repository"
	"turfbook/internal/bookings/validator"
	sloterrors "turfbook/internal/slots/errors"
	slotrepo "turfbook/internal/slots/repository"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/kafka"
	"turfbook/pkg/model"
	"turfbook/pkg/retry"
	"turfbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// Event types published to the booking events topic.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

type BookingService interface {
	Confirm(ctx context.Context, holderID string, booking *model.Booking) (string, error)
	Cancel(ctx context.Context, bookingID string, slotID string, cancelledBy string, reason string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error)
	UpdatePaymentStatus(ctx context.Context, bookingID string, status model.PaymentStatus) error
}

type bookingService struct {
	repo      repository.BookingRepository
	slotRepo  slotrepo.SlotRepository
	validator *validator.BookingValidator
	retryer   *retry.Executor
	producer  *kafka.Producer
	cfg       *config.Config
	now       func() time.Time
}

// NewBookingService builds the booking ledger. producer may be nil, in
// which case events are skipped.
func NewBookingService(
	repo repository.BookingRepository,
	slotRepo slotrepo.SlotRepository,
	bookingValidator *validator.BookingValidator,
	retryer *retry.Executor,
	producer *kafka.Producer,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		slotRepo:  slotRepo,
		validator: bookingValidator,
		retryer:   retryer,
		producer:  producer,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Confirm commits the slot to booked and inserts the ledger entry in one
// transaction: a booking never exists without its slot marked booked, and
// the slot is never booked without exactly one live booking. A prior
// reservation is not required; an available slot books directly.
func (s *bookingService) Confirm(ctx context.Context, holderID string, booking *model.Booking) (string, error) {
	if booking.SlotID == "" {
		return "", apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if holderID == "" {
		holderID = booking.CustomerID
	}

	s.applyDefaults(booking)
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return "", err
	}

	err := s.retryer.Do(ctx, "create_booking_atomic", func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			slot, err := s.slotRepo.MarkBooked(sessCtx, booking.SlotID, holderID, s.now().UTC())
			if err != nil {
				return err
			}

			// Snapshot schedule fields from the post-commit slot so the
			// ledger entry survives later slot edits.
			booking.TurfID = slot.TurfID
			booking.TurfName = slot.TurfName
			booking.NetNumber = slot.NetNumber
			booking.Date = slot.Date
			booking.StartTime = slot.StartTime
			booking.EndTime = slot.EndTime

			return s.repo.Create(sessCtx, booking)
		})
	})
	if err != nil {
		if errors.Is(err, sloterrors.ErrUnavailable) {
			return "", s.slotUnavailable(ctx, booking.SlotID)
		}
		s.cfg.Log.Error("Failed to confirm booking", "slot_id", booking.SlotID, "error", err)
		return "", s.mapStoreError(err)
	}

	s.cfg.Log.Info("Booking confirmed",
		"booking_id", booking.ID,
		"slot_id", booking.SlotID,
		"customer_id", booking.CustomerID,
	)
	s.publishBookingEvent(ctx, EventBookingConfirmed, booking, "", "")
	return booking.ID, nil
}

// Cancel reverts a confirmed booking and forces its slot open, both in
// one transaction. Idempotent: a second cancel of the same booking
// returns false and changes nothing.
func (s *bookingService) Cancel(ctx context.Context, bookingID string, slotID string, cancelledBy string, reason string) (bool, error) {
	if bookingID == "" || slotID == "" {
		return false, apperrors.InvalidInput("Booking ID and slot ID are required")
	}
	reason = sanitizer.SanitizeReason(reason)

	var cancelled bool
	err := s.retryer.Do(ctx, "cancel_booking", func(ctx context.Context) error {
		cancelled = false
		return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			now := s.now().UTC()

			ok, err := s.repo.MarkCancelled(sessCtx, bookingID, cancelledBy, reason, now)
			if err != nil {
				return err
			}
			if !ok {
				// Nothing matched: either the booking is gone or it was
				// cancelled earlier. No writes happened, so returning nil
				// commits an empty transaction.
				if _, err := s.repo.FindByID(sessCtx, bookingID); err != nil {
					return err
				}
				return nil
			}

			// Cancellation always reopens the slot, even if an external
			// edit moved it off booked state in the meantime.
			if err := s.slotRepo.ForceAvailable(sessCtx, slotID, now); err != nil {
				return err
			}

			cancelled = true
			return nil
		})
	})
	if err != nil {
		return false, s.mapCancelError(bookingID, slotID, err)
	}

	if cancelled {
		s.cfg.Log.Info("Booking cancelled",
			"booking_id", bookingID,
			"slot_id", slotID,
			"cancelled_by", cancelledBy,
		)
		s.publishBookingEvent(ctx, EventBookingCancelled, &model.Booking{ID: bookingID, SlotID: slotID}, cancelledBy, reason)
	} else {
		s.cfg.Log.Info("Cancel was a no-op, booking already cancelled", "booking_id", bookingID)
	}

	return cancelled, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapCancelError(id, "", err)
	}

	return booking, nil
}

func (s *bookingService) GetByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if customerID == "" {
		return nil, 0, apperrors.InvalidInput("Customer ID cannot be empty")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByCustomer(ctx, customerID)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "customer_id", customerID, "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindByCustomer(ctx, customerID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", "customer_id", customerID, "error", err)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) UpdatePaymentStatus(ctx context.Context, bookingID string, status model.PaymentStatus) error {
	if bookingID == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}
	switch status {
	case model.PaymentPaid, model.PaymentPending, model.PaymentPayAtVenue:
	default:
		return apperrors.InvalidInput("Invalid payment status")
	}

	err := s.retryer.Do(ctx, "update_payment_status", func(ctx context.Context) error {
		return s.repo.SetPaymentStatus(ctx, bookingID, status, s.now().UTC())
	})
	if err != nil {
		return s.mapCancelError(bookingID, "", err)
	}

	s.cfg.Log.Info("Payment status updated", "booking_id", bookingID, "payment_status", status)
	return nil
}

// --- Helpers ---

func (s *bookingService) applyDefaults(b *model.Booking) {
	b.BookingStatus = model.BookingConfirmed
	if b.PaymentStatus == "" {
		b.PaymentStatus = model.PaymentPending
	}
	if b.CustomerID == "" {
		b.CustomerID = sanitizer.NormalizePhone(b.CustomerPhone)
	}
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.CustomerName = sanitizer.SanitizeCustomerName(b.CustomerName)
	b.CustomerPhone = sanitizer.NormalizePhone(b.CustomerPhone)
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// slotUnavailable reports why the atomic commit matched nothing: the slot
// either does not exist or is in a state that cannot be booked.
func (s *bookingService) slotUnavailable(ctx context.Context, slotID string) error {
	if _, err := s.slotRepo.FindByID(ctx, slotID); err != nil {
		if errors.Is(err, sloterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Slot", slotID)
		}
		if errors.Is(err, sloterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid slot ID format")
		}
	}
	return apperrors.Conflict("Slot is not available for booking")
}

func (s *bookingService) mapStoreError(err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, sloterrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid slot ID format")
	}
	return apperrors.Internal("Booking store operation failed", err)
}

func (s *bookingService) mapCancelError(bookingID string, slotID string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", bookingID)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, sloterrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot", slotID)
	case errors.Is(err, sloterrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid slot ID format")
	case apperrors.IsAppError(err):
		return err
	default:
		return apperrors.Internal("Booking store operation failed", err)
	}
}

type bookingEventPayload struct {
	BookingID   string    `json:"booking_id"`
	SlotID      string    `json:"slot_id"`
	TurfID      string    `json:"turf_id,omitempty"`
	CustomerID  string    `json:"customer_id,omitempty"`
	Amount      float64   `json:"amount,omitempty"`
	CancelledBy string    `json:"cancelled_by,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// publishBookingEvent emits a lifecycle event. Best-effort: the ledger
// write has already committed and is never rolled back over a broker
// failure.
func (s *bookingService) publishBookingEvent(ctx context.Context, eventType string, booking *model.Booking, cancelledBy string, reason string) {
	if s.producer == nil || !s.cfg.EventsEnabled {
		return
	}

	msg := kafka.NewMessage().
		WithKey(booking.SlotID).
		WithEventType(eventType).
		WithSource("bookings").
		WithValue(bookingEventPayload{
			BookingID:   booking.ID,
			SlotID:      booking.SlotID,
			TurfID:      booking.TurfID,
			CustomerID:  booking.CustomerID,
			Amount:      booking.Amount,
			CancelledBy: cancelledBy,
			Reason:      reason,
			Timestamp:   s.now().UTC(),
		}).
		Build()

	if err := s.producer.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "event_type", eventType, "booking_id", booking.ID, "error", err)
	}
}
