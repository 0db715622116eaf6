package command

import (
	"fmt"
	"time"
)

// Kind is the usage category a successful invocation is counted under.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindAdmin   Kind = "admin"
	KindOwner   Kind = "owner"
	KindCustom  Kind = "custom"
)

// Access is the privilege a built-in requires.
type Access int

const (
	AccessUser Access = iota
	AccessAdmin
	AccessOwner
)

func (a Access) String() string {
	switch a {
	case AccessAdmin:
		return "admin"
	case AccessOwner:
		return "owner"
	default:
		return "user"
	}
}

// Event is one inbound chat line, already normalized by an adapter.
type Event struct {
	Source   Source
	UserID   string
	UserName string
	Text     string
	// Mention is the platform user id of the first user mentioned in the
	// message, if the platform reports mentions.
	Mention string
}

// Reply is the text sent back to the originating channel.
type Reply struct {
	Text string
}

// CustomCommand is a stored (source, name) -> content mapping.
type CustomCommand struct {
	Source  Source
	Name    string
	Content string
}

// UsageRecord is one aggregated usage counter.
type UsageRecord struct {
	Kind  Kind
	Name  string
	Count int64
}

// Period is a calendar month in UTC.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the UTC month containing t.
func PeriodOf(t time.Time) Period {
	u := t.UTC()
	return Period{Year: u.Year(), Month: u.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod parses a YYYY-MM period.
func ParsePeriod(v string) (Period, error) {
	t, err := time.Parse("2006-01", v)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period %q must look like 2024-03", ErrUsage, v)
	}
	return PeriodOf(t), nil
}
