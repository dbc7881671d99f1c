package sla

import (
	"time"

	"github.com/kawal234/HelpDeskMIni/internal/config"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

// Policy maps ticket priority to the allowed resolution window. Pure;
// values are fixed at process start from configuration.
type Policy struct {
	urgentHours  int
	highHours    int
	mediumHours  int
	lowHours     int
	defaultHours int
}

// NewPolicy builds a Policy from configuration, falling back to the
// stock table (urgent/high 4h, medium 12h, low 48h, default 24h) for
// non-positive values.
func NewPolicy(cfg config.SLAConfig) Policy {
	return Policy{
		urgentHours:  positiveOr(cfg.UrgentHours, 4),
		highHours:    positiveOr(cfg.HighHours, 4),
		mediumHours:  positiveOr(cfg.MediumHours, 12),
		lowHours:     positiveOr(cfg.LowHours, 48),
		defaultHours: positiveOr(cfg.DefaultHours, 24),
	}
}

// HoursFor returns the allowed resolution hours for a priority. An
// unrecognized priority falls back to the default window.
func (p Policy) HoursFor(priority domain.TicketPriority) int {
	switch priority {
	case domain.TicketPriorityUrgent:
		return p.urgentHours
	case domain.TicketPriorityHigh:
		return p.highHours
	case domain.TicketPriorityMedium:
		return p.mediumHours
	case domain.TicketPriorityLow:
		return p.lowHours
	default:
		return p.defaultHours
	}
}

// DueDate computes the absolute SLA deadline for a priority from now.
func (p Policy) DueDate(priority domain.TicketPriority, now time.Time) time.Time {
	return now.Add(time.Duration(p.HoursFor(priority)) * time.Hour)
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
