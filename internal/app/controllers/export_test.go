package controllers

import "time"

// SetClock replaces the controller's clock
func SetClock(c *DigestController, now func() time.Time) {
	c.now = now
}
