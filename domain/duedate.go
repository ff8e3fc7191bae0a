package domain

import (
	"fmt"
	"time"
)

// DueDateLayout is the calendar-date form used everywhere a due date travels.
const DueDateLayout = "2006-01-02"

// DueKind classifies how a due date relates to the current day.
type DueKind string

const (
	DueOverdue DueKind = "overdue"
	DueToday   DueKind = "today"
	DueSoon    DueKind = "soon"
	DueLater   DueKind = "later"
)

// DueInfo carries the badge label and classification for one due date.
type DueInfo struct {
	Label string  `json:"label"`
	Kind  DueKind `json:"kind"`
}

// Today returns the current local calendar day in YYYY-MM-DD form.
func Today() string {
	return time.Now().Format(DueDateLayout)
}

// ParseDueDate validates a YYYY-MM-DD string and returns it anchored at
// local midnight.
func ParseDueDate(due string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DueDateLayout, due, time.Local)
	if err != nil {
		return time.Time{}, WrapError(ErrCodeInvalid, fmt.Sprintf("invalid due date %q", due), err)
	}
	return parsed, nil
}

// DaysUntil returns the whole-day distance from the current local day to due.
// Positive means future, negative past.
func DaysUntil(due string) (int, error) {
	return DaysUntilAt(time.Now(), due)
}

// DaysUntilAt is DaysUntil with an explicit reference instant. Both endpoints
// are rebuilt at local midnight and the span rounded to whole days, so a DST
// transition inside the span cannot skew the count.
func DaysUntilAt(now time.Time, due string) (int, error) {
	target, err := ParseDueDate(due)
	if err != nil {
		return 0, err
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	span := target.Sub(start)
	days := int(span.Round(24*time.Hour) / (24 * time.Hour))
	return days, nil
}

// DueStatus buckets a due date as overdue/today/soon/later. The boundaries
// (d<0, d==0, d<=7, d>7) drive dashboard counts and badge rendering.
func DueStatus(due string) (DueInfo, error) {
	return DueStatusAt(time.Now(), due)
}

// DueStatusAt is DueStatus with an explicit reference instant.
func DueStatusAt(now time.Time, due string) (DueInfo, error) {
	d, err := DaysUntilAt(now, due)
	if err != nil {
		return DueInfo{}, err
	}
	switch {
	case d < 0:
		return DueInfo{Label: fmt.Sprintf("Overdue (%dd)", -d), Kind: DueOverdue}, nil
	case d == 0:
		return DueInfo{Label: "Due today", Kind: DueToday}, nil
	case d <= 7:
		return DueInfo{Label: fmt.Sprintf("Due in %dd", d), Kind: DueSoon}, nil
	default:
		return DueInfo{Label: fmt.Sprintf("Due in %dd", d), Kind: DueLater}, nil
	}
}
