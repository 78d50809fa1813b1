// Package schedule evaluates time-based trigger schedules.
package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldline/slaflow/pkg/models"
)

// parser accepts the standard 5-field cron format (minute hour day month weekday).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks that a schedule is well-formed without evaluating it.
func Validate(s *models.Schedule) error {
	if s == nil {
		return fmt.Errorf("time-based trigger has no schedule")
	}

	switch s.Kind {
	case models.ScheduleKindInterval:
		minutes, err := strconv.Atoi(s.Value)
		if err != nil || minutes <= 0 {
			return fmt.Errorf("invalid interval %q: must be a positive number of minutes", s.Value)
		}

		return nil
	case models.ScheduleKindCron:
		if _, err := parser.Parse(s.Value); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Value, err)
		}

		return nil
	default:
		return fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}

// Due reports whether a schedule should fire at now, given the last time the
// workflow executed (zero when it never has).
//
// Interval schedules carry the interval in minutes and fire once that much
// time has elapsed since last. Cron schedules fire when the expression's next
// activation after last is not in the future.
func Due(s *models.Schedule, last, now time.Time) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("time-based trigger has no schedule")
	}

	switch s.Kind {
	case models.ScheduleKindInterval:
		minutes, err := strconv.Atoi(s.Value)
		if err != nil || minutes <= 0 {
			return false, fmt.Errorf("invalid interval %q: must be a positive number of minutes", s.Value)
		}

		return now.Sub(last) >= time.Duration(minutes)*time.Minute, nil
	case models.ScheduleKindCron:
		spec, err := parser.Parse(s.Value)
		if err != nil {
			return false, fmt.Errorf("invalid cron expression %q: %w", s.Value, err)
		}

		return !spec.Next(last).After(now), nil
	default:
		return false, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}
