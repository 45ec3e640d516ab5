package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"formsync/internal/clock"
)

func newTestIndicator() (*Indicator, *clock.Manual, *[]bool) {
	c := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ind := New(c)
	flips := &[]bool{}
	ind.OnChange(func(v bool) { *flips = append(*flips, v) })
	return ind, c, flips
}

func TestArm_ShowsThenResets(t *testing.T) {
	ind, c, flips := newTestIndicator()

	ind.Arm()
	assert.True(t, ind.Visible())

	c.Advance(ResetDelay - time.Millisecond)
	assert.True(t, ind.Visible())

	c.Advance(time.Millisecond)
	assert.False(t, ind.Visible())
	assert.Equal(t, []bool{true, false}, *flips)
}

func TestArm_CoalescesWithinWindow(t *testing.T) {
	ind, c, flips := newTestIndicator()

	ind.Arm()
	c.Advance(1500 * time.Millisecond)
	ind.Arm()
	assert.Equal(t, 1, c.Pending(), "second arm must not schedule a timer")

	c.Advance(500 * time.Millisecond)
	assert.False(t, ind.Visible(), "reset happens 2000ms after the first arm")
	assert.Equal(t, []bool{true, false}, *flips)

	c.Advance(ResetDelay)
	assert.Equal(t, []bool{true, false}, *flips, "exactly one reset")
}

func TestArm_AfterResetSchedulesAgain(t *testing.T) {
	ind, c, flips := newTestIndicator()

	ind.Arm()
	c.Advance(ResetDelay)
	ind.Arm()
	assert.True(t, ind.Visible())

	c.Advance(ResetDelay)
	assert.Equal(t, []bool{true, false, true, false}, *flips)
}

func TestClose_CancelsTimer(t *testing.T) {
	ind, c, flips := newTestIndicator()

	ind.Arm()
	ind.Close()
	assert.False(t, ind.Visible())
	assert.Equal(t, 0, c.Pending())

	c.Advance(ResetDelay)
	assert.Equal(t, []bool{true, false}, *flips)

	ind.Close()
	assert.Len(t, *flips, 2, "closing a hidden indicator does not notify")
}

func TestOnChange_ObserverMayRegisterObserver(t *testing.T) {
	ind, c, flips := newTestIndicator()

	var late []bool
	registered := false
	ind.OnChange(func(v bool) {
		if !registered {
			registered = true
			ind.OnChange(func(v bool) { late = append(late, v) })
		}
	})

	ind.Arm()
	assert.Empty(t, late, "an observer added during a flip sees the next one")

	c.Advance(ResetDelay)
	assert.Equal(t, []bool{false}, late)
	assert.Equal(t, []bool{true, false}, *flips)
}
