package model

import (
	"testing"
	"time"
)

func TestSlot_HoldExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(10 * time.Minute)

	tests := []struct {
		name         string
		slot         Slot
		wantExpired  bool
		wantReserv   bool
		heldByHolder bool
	}{
		{
			name:        "available slot",
			slot:        Slot{Status: SlotAvailable},
			wantExpired: false,
			wantReserv:  true,
		},
		{
			name:         "live reservation",
			slot:         Slot{Status: SlotReserved, ReservedBy: "holder-a", ReservedUntil: &future},
			wantExpired:  false,
			wantReserv:   false,
			heldByHolder: true,
		},
		{
			name:        "expired reservation is logically available",
			slot:        Slot{Status: SlotReserved, ReservedBy: "holder-a", ReservedUntil: &past},
			wantExpired: true,
			wantReserv:  true,
		},
		{
			name:        "hold expiring exactly now has lapsed",
			slot:        Slot{Status: SlotReserved, ReservedBy: "holder-a", ReservedUntil: &now},
			wantExpired: true,
			wantReserv:  true,
		},
		{
			name:        "booked slot never reservable",
			slot:        Slot{Status: SlotBooked},
			wantExpired: false,
			wantReserv:  false,
		},
		{
			name:        "blocked slot never auto-expires",
			slot:        Slot{Status: SlotBlocked, BlockedBy: "owner-1"},
			wantExpired: false,
			wantReserv:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.HoldExpired(now); got != tt.wantExpired {
				t.Errorf("HoldExpired = %v, want %v", got, tt.wantExpired)
			}
			if got := tt.slot.Reservable(now); got != tt.wantReserv {
				t.Errorf("Reservable = %v, want %v", got, tt.wantReserv)
			}
			if got := tt.slot.HeldBy("holder-a", now); got != tt.heldByHolder {
				t.Errorf("HeldBy(holder-a) = %v, want %v", got, tt.heldByHolder)
			}
		})
	}
}

func TestSlot_HeldByOtherHolder(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	slot := Slot{Status: SlotReserved, ReservedBy: "holder-a", ReservedUntil: &future}

	if slot.HeldBy("holder-b", now) {
		t.Error("a hold must only belong to the holder that placed it")
	}
}
