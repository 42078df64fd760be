package kpi

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
)

// DayTotal is the revenue of one calendar day
type DayTotal struct {
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// HourTotal is the revenue of one hour of the day
type HourTotal struct {
	Hour  int             `json:"hour"`
	Total decimal.Decimal `json:"total"`
}

// weekdayOrder fixes the column order of the heatmap
var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// timed reports whether a record takes part in the time series
func timed(r *models.Record) bool {
	return r != nil && r.Flags.IsValid && !r.Flags.IsRentalExempt && r.HasTimestamp()
}

// SalesByDay sums valid, non-rental amounts per day in chronological order
func SalesByDay(records []*models.Record) []DayTotal {
	byDay := make(map[time.Time]decimal.Decimal)
	for _, r := range records {
		if !timed(r) {
			continue
		}
		byDay[r.Day] = byDay[r.Day].Add(r.AmountTotal)
	}
	if len(byDay) == 0 {
		return nil
	}

	out := make([]DayTotal, 0, len(byDay))
	for day, total := range byDay {
		out = append(out, DayTotal{Day: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// SalesByHour sums valid, non-rental amounts per hour of the day
func SalesByHour(records []*models.Record) []HourTotal {
	byHour := make(map[int]decimal.Decimal)
	for _, r := range records {
		if !timed(r) {
			continue
		}
		byHour[r.HourOfDay] = byHour[r.HourOfDay].Add(r.AmountTotal)
	}
	if len(byHour) == 0 {
		return nil
	}

	out := make([]HourTotal, 0, len(byHour))
	for hour, total := range byHour {
		out = append(out, HourTotal{Hour: hour, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// Heatmap holds revenue per hour (rows) and weekday (columns).
// Only hours and weekdays that occur in the data are present.
type Heatmap struct {
	Hours    []int               `json:"hours"`
	Weekdays []string            `json:"weekdays"`
	Values   [][]decimal.Decimal `json:"values"`
}

// Value returns the cell for an hour and weekday name, zero when absent
func (h *Heatmap) Value(hour int, weekday string) decimal.Decimal {
	for i, hh := range h.Hours {
		if hh != hour {
			continue
		}
		for j, wd := range h.Weekdays {
			if wd == weekday {
				return h.Values[i][j]
			}
		}
	}
	return decimal.Zero
}

// WeeklyHeatmap pivots valid, non-rental revenue into hour x weekday,
// with weekdays ordered Monday to Sunday
func WeeklyHeatmap(records []*models.Record) *Heatmap {
	type cell struct {
		hour    int
		weekday time.Weekday
	}
	sums := make(map[cell]decimal.Decimal)
	hours := make(map[int]struct{})
	days := make(map[time.Weekday]struct{})

	for _, r := range records {
		if !timed(r) {
			continue
		}
		c := cell{hour: r.HourOfDay, weekday: r.Timestamp.Weekday()}
		sums[c] = sums[c].Add(r.AmountTotal)
		hours[c.hour] = struct{}{}
		days[c.weekday] = struct{}{}
	}
	if len(sums) == 0 {
		return nil
	}

	h := &Heatmap{}
	for hour := range hours {
		h.Hours = append(h.Hours, hour)
	}
	sort.Ints(h.Hours)

	var weekdays []time.Weekday
	for _, wd := range weekdayOrder {
		if _, ok := days[wd]; ok {
			weekdays = append(weekdays, wd)
			h.Weekdays = append(h.Weekdays, wd.String())
		}
	}

	h.Values = make([][]decimal.Decimal, len(h.Hours))
	for i, hour := range h.Hours {
		row := make([]decimal.Decimal, len(weekdays))
		for j, wd := range weekdays {
			row[j] = sums[cell{hour: hour, weekday: wd}]
		}
		h.Values[i] = row
	}
	return h
}
