package pwserver

import (
	"context"
	"time"
)

type ReportWriter interface {
	Type() string
	WriteProbe(ctx context.Context, entry ProbeEntry) error
}

type ProbeStatus int

const (
	ProbeStatusDown       = 0
	ProbeStatusUp         = 1
	ProbeStatusDownString = "down"
	ProbeStatusUpString   = "up"
)

func (this ProbeStatus) String() string {
	switch this {
	case ProbeStatusUp:
		return ProbeStatusUpString
	case ProbeStatusDown:
		return ProbeStatusDownString
	default:
		return ""
	}
}

// ProbeEntry is a single finished probe run. Response is nil when
// the peer closed the connection without sending anything.
type ProbeEntry struct {
	ID       string
	Label    string
	Time     time.Time
	Host     string
	Status   ProbeStatus
	Response *string
	Elapsed  time.Duration
	Error    string
}
