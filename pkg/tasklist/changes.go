package tasklist

import (
	"fmt"

	"tableflip.dev/daylog/pkg/timeutil"
)

// ChangeKind classifies a projection change.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
	ChangeRolledBack
	ChangeReconciled
	ChangeHydrated
	ChangeReplacing
	ChangeDayChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeRolledBack:
		return "rolled-back"
	case ChangeReconciled:
		return "reconciled"
	case ChangeHydrated:
		return "hydrated"
	case ChangeReplacing:
		return "replacing"
	case ChangeDayChanged:
		return "day-changed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is emitted after the projection changes. TaskID is empty for
// bucket-wide changes.
type Change struct {
	Kind   ChangeKind
	Day    timeutil.Day
	TaskID string
}

func (c Change) String() string {
	if c.TaskID == "" {
		return fmt.Sprintf("%s %s", c.Kind, c.Day)
	}
	return fmt.Sprintf("%s %s %s", c.Kind, c.Day, c.TaskID)
}

// emit never blocks the owner; a consumer that falls behind misses events
// and should re-read a Snapshot.
func (c *Coordinator) emit(ch Change) {
	select {
	case c.changes <- ch:
	default:
	}
}
