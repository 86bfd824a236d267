package ledger

import (
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectForPromotion(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	waitlist := []model.Registration{
		{ID: "c", UserID: "u3", RegisteredAt: t0.Add(3 * time.Minute)},
		{ID: "a", UserID: "u1", RegisteredAt: t0.Add(1 * time.Minute)},
		{ID: "b", UserID: "u2", RegisteredAt: t0.Add(2 * time.Minute)},
	}

	t.Run("takes the earliest first", func(t *testing.T) {
		got := selectForPromotion(waitlist, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "u1", got[0].UserID)
		assert.Equal(t, "u2", got[1].UserID)
	})

	t.Run("bounded by the waitlist", func(t *testing.T) {
		assert.Len(t, selectForPromotion(waitlist, 10), 3)
	})

	t.Run("no spots", func(t *testing.T) {
		assert.Empty(t, selectForPromotion(waitlist, 0))
	})

	t.Run("ties broken by id", func(t *testing.T) {
		tied := []model.Registration{
			{ID: "z", UserID: "late-id", RegisteredAt: t0},
			{ID: "m", UserID: "early-id", RegisteredAt: t0},
		}
		got := selectForPromotion(tied, 1)
		require.Len(t, got, 1)
		assert.Equal(t, "early-id", got[0].UserID)
	})

	t.Run("input untouched", func(t *testing.T) {
		_ = selectForPromotion(waitlist, 3)
		assert.Equal(t, "c", waitlist[0].ID)
	})

	t.Run("negative budget is a bug", func(t *testing.T) {
		assert.Panics(t, func() { selectForPromotion(waitlist, -1) })
	})
}

func TestMustHoldCapacity(t *testing.T) {
	assert.NotPanics(t, func() { mustHoldCapacity(&model.Event{Capacity: 2, CurrentRegistrations: 2}) })
	assert.Panics(t, func() { mustHoldCapacity(&model.Event{Capacity: 2, CurrentRegistrations: 3}) })
	assert.Panics(t, func() { mustHoldCapacity(&model.Event{Capacity: 2, CurrentRegistrations: -1}) })
}
