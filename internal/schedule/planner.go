package schedule

import (
	"time"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/models"
)

type Slot struct {
	Start time.Time
	End   time.Time
}

type DaySlots struct {
	Date  time.Time
	Slots []Slot
}

// PlanDays walks each calendar day in [from, to), matches the staff
// working rules against the day's ISO weekday and emits every slot of
// duration minutes, quantized by step minutes, that starts after now
// and touches no busy interval. Every day gets an entry, empty days
// included.
//
// Rules on the same weekday generate independently; overlapping rules
// can emit overlapping slots and no dedup is applied.
func PlanDays(rules []models.WorkingRule, busy []models.BusyInterval, from, to time.Time, durationMin, stepMin int, now time.Time, loc *time.Location) []DaySlots {
	duration := time.Duration(durationMin) * time.Minute

	var days []DaySlots
	for d := DayStart(from, loc); d.Before(DayStart(to, loc)); d = d.AddDate(0, 0, 1) {
		day := DaySlots{Date: d}
		wd := ISOWeekday(d)

		for _, rule := range rules {
			if rule.Weekday != wd {
				continue
			}

			for t := rule.StartMinute; t+durationMin <= rule.EndMinute; t += stepMin {
				start := AtMinute(d, t, loc)
				end := start.Add(duration)

				if !start.After(now) {
					continue
				}
				if overlapsAny(start, end, busy) {
					continue
				}

				day.Slots = append(day.Slots, Slot{Start: start, End: end})
			}
		}

		days = append(days, day)
	}

	return days
}

func overlapsAny(start, end time.Time, busy []models.BusyInterval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
