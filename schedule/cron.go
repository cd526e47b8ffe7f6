// Package schedule runs workflows on cron schedules. Expressions use the
// standard five-field form and are evaluated in UTC only.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// NextRun returns the next UTC firing time of expr strictly after now.
func NextRun(expr string, now time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.UTC()), nil
}

// Parse parses a five-field cron expression. Timezone prefixes are rejected;
// all schedules fire on UTC wall time.
func Parse(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	sched, err := standardCronParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched, nil
}
