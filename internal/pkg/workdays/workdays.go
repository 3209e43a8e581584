// Package workdays implements working-day deadline arithmetic. A working
// day is any calendar day that is not Saturday or Sunday; there is no
// holiday calendar.
package workdays

import "time"

// Add returns t advanced by n working days. The date steps forward one
// calendar day at a time, counting only non-weekend days, so a deadline
// landing mid-week from a Friday submission skips the weekend.
func Add(t time.Time, n int) time.Time {
	for counted := 0; counted < n; {
		t = t.AddDate(0, 0, 1)
		if !IsWeekend(t) {
			counted++
		}
	}
	return t
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Between counts the working days strictly after from and up to and
// including to. It returns 0 when to is not after from.
func Between(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) {
			n++
		}
	}
	return n
}
