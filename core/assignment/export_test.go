package assignment

import "time"

// SetNow freezes the clock of the package until the returned func is called.
func SetNow(now time.Time) (restore func()) {
	old := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = old }
}
