// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package countdown

import (
	"fmt"
	"time"
)

// TimeLeft is the remaining time until auction end, decomposed by
// truncated integer division. It is not calendar-aware: days are flat
// 24-hour blocks.
type TimeLeft struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// IsZero reports the terminal state: the auction has ended.
func (t TimeLeft) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

func (t TimeLeft) String() string {
	return fmt.Sprintf("%dd %02dh %02dm %02ds", t.Days, t.Hours, t.Minutes, t.Seconds)
}

// Compute derives the time left from the auction end timestamp and the
// current wall clock. Any end time at or before now yields the zero
// tuple. Pure; callers re-evaluate on their own tick and after every
// snapshot read, since the server may extend the end date.
func Compute(end, now time.Time) TimeLeft {
	diff := end.Sub(now)
	if diff <= 0 {
		return TimeLeft{}
	}

	secs := int(diff / time.Second)
	return TimeLeft{
		Days:    secs / 86400,
		Hours:   (secs % 86400) / 3600,
		Minutes: (secs % 3600) / 60,
		Seconds: secs % 60,
	}
}
