package config

import (
	"log"
	"time"
)

// SchedulerConfig carries the tunables of the reservation scheduler.  It
// is passed to the services explicitly instead of being read from
// globals.
type SchedulerConfig struct {
	// ReservationWindowDays bounds how far ahead slots are offered.
	ReservationWindowDays int
	// DefaultTimezone applies to rooms that do not name their own zone.
	DefaultTimezone string
	// LeaseTimeout caps how long a user lease may be held.
	LeaseTimeout time.Duration
}

// DefaultScheduler returns the built-in scheduler settings.
func DefaultScheduler() SchedulerConfig {
	return SchedulerConfig{
		ReservationWindowDays: 30,
		DefaultTimezone:       "Europe/Helsinki",
		LeaseTimeout:          10 * time.Second,
	}
}

// LoadScheduler reads SCHED_* variables on top of DefaultScheduler.
func LoadScheduler() SchedulerConfig {
	def := DefaultScheduler()
	cfg := SchedulerConfig{
		ReservationWindowDays: envInt("SCHED_RESERVATION_WINDOW_DAYS", def.ReservationWindowDays),
		DefaultTimezone:       envStr("SCHED_DEFAULT_TIMEZONE", def.DefaultTimezone),
		LeaseTimeout:          envDur("SCHED_LEASE_TIMEOUT", def.LeaseTimeout),
	}
	if cfg.ReservationWindowDays < 1 {
		cfg.ReservationWindowDays = def.ReservationWindowDays
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = def.LeaseTimeout
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		log.Fatalf("invalid SCHED_DEFAULT_TIMEZONE %q: %v", cfg.DefaultTimezone, err)
	}
	return cfg
}

// Window returns the length of the reservation window.
func (c SchedulerConfig) Window() time.Duration {
	return time.Duration(c.ReservationWindowDays) * 24 * time.Hour
}

// Location resolves a room time zone.  An empty or unknown name falls
// back to DefaultTimezone and then to UTC.
func (c SchedulerConfig) Location(name string) *time.Location {
	for _, n := range []string{name, c.DefaultTimezone} {
		if n == "" {
			continue
		}
		if loc, err := time.LoadLocation(n); err == nil {
			return loc
		}
	}
	return time.UTC
}
