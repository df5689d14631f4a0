package model

import "time"

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPaid       PaymentStatus = "paid"
	PaymentPending    PaymentStatus = "pending"
	PaymentPayAtVenue PaymentStatus = "pay_at_venue"
)

// Booking is the durable ledger entry created when a slot commits to
// booked. Schedule fields are a snapshot taken at confirmation time and
// survive later edits to the slot.
type Booking struct {
	ID     string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SlotID string `json:"slot_id" bson:"slot_id" validate:"required,mongodb"`
	TurfID string `json:"turf_id" bson:"turf_id" validate:"required"`

	TurfName  string `json:"turf_name" bson:"turf_name"`
	NetNumber int    `json:"net_number" bson:"net_number"`
	Date      string `json:"date" bson:"date"`
	StartTime string `json:"start_time" bson:"start_time"`
	EndTime   string `json:"end_time" bson:"end_time"`

	CustomerID    string `json:"customer_id" bson:"customer_id" validate:"required"`
	CustomerName  string `json:"customer_name" bson:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string `json:"customer_phone,omitempty" bson:"customer_phone,omitempty" validate:"omitempty,e164_loose"`

	Amount        float64 `json:"amount" bson:"amount" validate:"min=0"`
	AdvanceAmount float64 `json:"advance_amount" bson:"advance_amount" validate:"min=0,ltefield=Amount"`

	BookingStatus BookingStatus `json:"booking_status" bson:"booking_status" validate:"omitempty,oneof=confirmed cancelled"`
	PaymentStatus PaymentStatus `json:"payment_status" bson:"payment_status" validate:"required,oneof=paid pending pay_at_venue"`

	// Present only when BookingStatus == BookingCancelled.
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) IsCancelled() bool {
	return b.BookingStatus == BookingCancelled
}
