package model

import "time"

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotReserved  SlotStatus = "reserved"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
)

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// Slot is the smallest bookable unit: one turf, one net, one date, one
// time window. Slots are created by the schedule generator and mutated
// only through conditional writes keyed on their current state.
type Slot struct {
	ID        string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TurfID    string `json:"turf_id" bson:"turf_id" validate:"required"`
	TurfName  string `json:"turf_name" bson:"turf_name" validate:"required,min=2,max=100"`
	NetNumber int    `json:"net_number" bson:"net_number" validate:"required,min=1"`

	Date      string `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" bson:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,datetime=15:04"`

	Status SlotStatus `json:"status" bson:"status" validate:"required,oneof=available reserved booked blocked"`

	// Meaningful only while Status == SlotReserved. A reservation whose
	// ReservedUntil lies in the past is logically available; the stored
	// status is corrected by the next conditional write that observes it.
	ReservedBy    string     `json:"reserved_by,omitempty" bson:"reserved_by,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty" bson:"reserved_until,omitempty"`

	Price     float64 `json:"price" bson:"price" validate:"min=0"`
	PriceTier string  `json:"price_tier,omitempty" bson:"price_tier,omitempty"`

	// Set only while Status == SlotBlocked. Owner-initiated; never touched
	// by reservation expiry or booking.
	BlockedBy   string `json:"blocked_by,omitempty" bson:"blocked_by,omitempty"`
	BlockReason string `json:"block_reason,omitempty" bson:"block_reason,omitempty"`

	Version   int64     `json:"version" bson:"version"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// HoldExpired reports whether the slot carries a reservation whose hold
// window has already passed.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.Status == SlotReserved && s.ReservedUntil != nil && !now.Before(*s.ReservedUntil)
}

// Reservable reports whether a Reserve attempt at the given instant could
// succeed: the slot is available, or held by an expired reservation.
func (s *Slot) Reservable(now time.Time) bool {
	return s.Status == SlotAvailable || s.HoldExpired(now)
}

// HeldBy reports whether the slot is under a still-valid hold owned by
// the given holder.
func (s *Slot) HeldBy(holderID string, now time.Time) bool {
	return s.Status == SlotReserved &&
		s.ReservedBy == holderID &&
		s.ReservedUntil != nil &&
		now.Before(*s.ReservedUntil)
}
