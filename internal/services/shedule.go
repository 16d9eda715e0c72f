package services

import (
	"context"
	"time"

	"rentbot/internal/models"
)

type TimeSlot struct {
	Hour      int
	Free      int
	Available bool
}

// HourSlots считает свободное количество для каждого часа дня при
// длительности и количестве из черновика.
func (s *ReservationService) HourSlots(ctx context.Context, draft *models.Reserve, date time.Time, openHour, closeHour int) ([]TimeSlot, error) {
	now := s.now()
	var slots []TimeSlot

	for hour := openHour; hour < closeHour; hour++ {
		candidate := draft.Clone()
		candidate.SetStart(time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location()))
		if candidate.Minutes() <= 0 {
			candidate.SetKind = s.kind.DefaultSetKind()
			candidate.SetCount = 1
		}

		start, _ := candidate.Start()
		slot := TimeSlot{Hour: hour}
		if !start.Before(now) {
			taken, err := s.reserves.SumOverlappingQuantity(ctx, candidate)
			if err != nil {
				return nil, err
			}
			slot.Free = s.capacity - taken
			if slot.Free < 0 {
				slot.Free = 0
			}
			slot.Available = slot.Free >= candidate.Count
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
