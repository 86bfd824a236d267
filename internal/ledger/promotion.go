package ledger

import (
	"fmt"
	"slices"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// selectForPromotion picks at most spots waitlisted records in FIFO order:
// earliest RegisteredAt first, ID breaking ties. The input is not modified.
func selectForPromotion(waitlist []model.Registration, spots int) []model.Registration {
	if spots < 0 {
		panic(fmt.Sprintf("ledger: negative promotion budget %d", spots))
	}
	if spots == 0 || len(waitlist) == 0 {
		return nil
	}

	queue := slices.Clone(waitlist)
	slices.SortStableFunc(queue, compareWaitlist)

	n := min(spots, len(queue))
	return queue[:n:n]
}

func compareWaitlist(a, b model.Registration) int {
	if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// mustHoldCapacity panics when the counter left the [0, capacity] range.
// Reaching it means a ledger bug, not bad input.
func mustHoldCapacity(ev *model.Event) {
	if ev.CurrentRegistrations < 0 || ev.CurrentRegistrations > ev.Capacity {
		panic(fmt.Sprintf("ledger: event %s has %d registrations for capacity %d",
			ev.ID, ev.CurrentRegistrations, ev.Capacity))
	}
}
