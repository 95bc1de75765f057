package models

import (
	"fmt"
)

// Slot is one of the fixed bookable windows of a day.
type Slot string

const (
	Slot0910 Slot = "S_09_10"
	Slot1011 Slot = "S_10_11"
	Slot1112 Slot = "S_11_12"
	Slot1415 Slot = "S_14_15"
	Slot1516 Slot = "S_15_16"
)

var slotLabels = map[Slot]string{
	Slot0910: "09:00-10:00",
	Slot1011: "10:00-11:00",
	Slot1112: "11:00-12:00",
	Slot1415: "14:00-15:00",
	Slot1516: "15:00-16:00",
}

// AllSlots returns the slots in chronological order.
func AllSlots() []Slot {
	return []Slot{Slot0910, Slot1011, Slot1112, Slot1415, Slot1516}
}

func ParseSlot(s string) (Slot, error) {
	slot := Slot(s)
	if !slot.Valid() {
		return "", fmt.Errorf("unknown slot %q", s)
	}
	return slot, nil
}

func (s Slot) Valid() bool {
	_, ok := slotLabels[s]
	return ok
}

// Label returns the human-readable window, or the raw value for unknown slots.
func (s Slot) Label() string {
	if l, ok := slotLabels[s]; ok {
		return l
	}
	return string(s)
}
