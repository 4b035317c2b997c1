// Package schedule repeats a job on a cron expression or a fixed interval.
package schedule
