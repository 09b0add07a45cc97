package engine

import (
	"testing"

	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/flowtest"
	"github.com/flowdist/flowdist/flowtest/assert"
	"github.com/flowdist/flowdist/money"
)

func TestDistributeRoundsDownToUnitMultiple(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	alice := flowtest.Address(t, "alice")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 1000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, alice, 7, 0))

	actual, err := e.Distribute(db, sender, sender, p, money.NewValue(100), 0)
	assert.Nil(t, err)
	if !actual.Equal(money.NewValue(98)) {
		t.Fatalf("actual %s, want 98", actual)
	}

	// The remainder stays with the sender.
	if got := available(t, e, db, sender, 0); !got.Equal(money.NewValue(902)) {
		t.Fatalf("sender balance %s, want 902", got)
	}

	claimed, err := e.ClaimAll(db, p, alice, 0)
	assert.Nil(t, err)
	if !claimed.Equal(money.NewValue(98)) {
		t.Fatalf("alice claimed %s, want 98", claimed)
	}
	if got := available(t, e, db, p, 0); !got.IsZero() {
		t.Fatalf("pool account balance %s, want 0", got)
	}
}

func TestDistributeToZeroUnitPool(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 1000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)

	actual, err := e.Distribute(db, sender, sender, h.Address(), money.NewValue(100), 0)
	assert.Nil(t, err)
	if !actual.IsZero() {
		t.Fatalf("actual %s, want 0", actual)
	}
	if got := available(t, e, db, sender, 0); !got.Equal(money.NewValue(1000)) {
		t.Fatalf("sender balance %s, want 1000", got)
	}
}

func TestDistributeValidation(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	sender := flowtest.Address(t, "sender")
	other := flowtest.Address(t, "other")

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)

	_, err = e.Distribute(db, other, sender, h.Address(), money.NewValue(10), 0)
	assert.IsErr(t, errors.ErrUnauthorized, err)

	_, err = e.Distribute(db, sender, sender, h.Address(), money.NewValue(-1), 0)
	assert.IsErr(t, errors.ErrInput, err)

	_, err = e.Distribute(db, sender, sender, flowtest.Address(t, "ghost"), money.NewValue(10), 0)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestDistributeOverdrawRollsBack(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	alice := flowtest.Address(t, "alice")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 50)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, alice, 7, 0))

	_, err = e.Distribute(db, sender, sender, p, money.NewValue(100), 0)
	assert.IsErr(t, errors.ErrInsolvent, err)

	// The failed shift left no trace.
	if got := available(t, e, db, sender, 0); !got.Equal(money.NewValue(50)) {
		t.Fatalf("sender balance %s, want 50", got)
	}
	claimed, err := e.ClaimAll(db, p, alice, 0)
	assert.Nil(t, err)
	if !claimed.IsZero() {
		t.Fatalf("alice claimed %s from a rolled back distribution", claimed)
	}
}

func TestDistributeFlowRemainderScenario(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	alice := flowtest.Address(t, "alice")
	bob := flowtest.Address(t, "bob")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 100000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, alice, 4, 0))
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, bob, 3, 0))

	// 100 over 7 units: 14 per unit, remainder 2 to the admin.
	ev, err := e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(100), 0)
	assert.Nil(t, err)
	if !ev.Distributed.Equal(money.NewFlowRate(98)) {
		t.Fatalf("distributed %s, want 98", ev.Distributed)
	}
	if !ev.Adjustment.Equal(money.NewFlowRate(2)) {
		t.Fatalf("adjustment %s, want 2", ev.Adjustment)
	}
	assert.Equal(t, admin, ev.AdjustmentRecipient)

	adminRate, err := e.GetNetFlowRate(db, admin)
	assert.Nil(t, err)
	if !adminRate.Equal(money.NewFlowRate(2)) {
		t.Fatalf("admin net rate %s, want 2", adminRate)
	}
	senderRate, err := e.GetNetFlowRate(db, sender)
	assert.Nil(t, err)
	if !senderRate.Equal(money.NewFlowRate(-100)) {
		t.Fatalf("sender net rate %s, want -100", senderRate)
	}

	// The sender pays exactly the requested rate.
	rate, err := e.GetFlowRate(db, sender, p)
	assert.Nil(t, err)
	if !rate.Equal(money.NewFlowRate(100)) {
		t.Fatalf("flow rate %s, want 100", rate)
	}
}

func TestDistributeFlowBufferConvergence(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	alice := flowtest.Address(t, "alice")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 100000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, alice, 7, 0))

	ev, err := e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(100), 0)
	assert.Nil(t, err)
	if !ev.Buffer.Equal(money.NewValue(1000)) {
		t.Fatalf("buffer %s, want 1000", ev.Buffer)
	}
	_, buffer, err := e.RealtimeBalance(db, sender, 0)
	assert.Nil(t, err)
	if !buffer.Equal(money.NewValue(1000)) {
		t.Fatalf("sender total buffer %s, want 1000", buffer)
	}

	// Re-stating the same rate converges: no buffer drift, no balance
	// jump, no adjustment double counting.
	before := available(t, e, db, sender, 5)
	ev, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(100), 5)
	assert.Nil(t, err)
	if !ev.Buffer.Equal(money.NewValue(1000)) {
		t.Fatalf("buffer drifted to %s", ev.Buffer)
	}
	if !ev.OldRate.Equal(money.NewFlowRate(100)) || !ev.NewRate.Equal(money.NewFlowRate(100)) {
		t.Fatalf("rates %s -> %s, want 100 -> 100", ev.OldRate, ev.NewRate)
	}
	if got := available(t, e, db, sender, 5); !got.Equal(before) {
		t.Fatalf("idempotent call moved sender balance from %s to %s", before, got)
	}
	adminRate, err := e.GetNetFlowRate(db, admin)
	assert.Nil(t, err)
	if !adminRate.Equal(money.NewFlowRate(2)) {
		t.Fatalf("admin net rate %s, want 2", adminRate)
	}

	// The custody account holds exactly the buffer.
	if got := available(t, e, db, e.custody, 5); !got.Equal(money.NewValue(1000)) {
		t.Fatalf("custody balance %s, want 1000", got)
	}
}

func TestDistributeFlowClose(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	alice := flowtest.Address(t, "alice")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 100000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, alice, 5, 0))

	_, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(100), 0)
	assert.Nil(t, err)

	// Closing refunds the buffer and zeroes the rate.
	ev, err := e.DistributeFlow(db, sender, sender, p, money.FlowRate{}, 10)
	assert.Nil(t, err)
	if !ev.Buffer.IsZero() {
		t.Fatalf("buffer %s after close", ev.Buffer)
	}
	rate, err := e.GetFlowRate(db, sender, p)
	assert.Nil(t, err)
	if !rate.IsZero() {
		t.Fatalf("flow rate %s after close", rate)
	}
	senderRate, err := e.GetNetFlowRate(db, sender)
	assert.Nil(t, err)
	if !senderRate.IsZero() {
		t.Fatalf("sender net rate %s after close", senderRate)
	}
	// 100000 - 100*10 streamed out, buffer fully returned.
	if got := available(t, e, db, sender, 10); !got.Equal(money.NewValue(99000)) {
		t.Fatalf("sender balance %s, want 99000", got)
	}
	if got := available(t, e, db, e.custody, 10); !got.IsZero() {
		t.Fatalf("custody balance %s after close", got)
	}
}

func TestDistributeFlowValidation(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	sender := flowtest.Address(t, "sender")
	other := flowtest.Address(t, "other")
	seedAccount(t, e, db, sender, 100000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()

	_, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(-1), 0)
	assert.IsErr(t, errors.ErrInput, err)

	// No delegated open or increase.
	_, err = e.DistributeFlow(db, other, sender, p, money.NewFlowRate(10), 0)
	assert.IsErr(t, errors.ErrUnauthorized, err)

	// A healthy sender cannot be force-closed.
	_, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(10), 0)
	assert.Nil(t, err)
	_, err = e.DistributeFlow(db, other, sender, p, money.FlowRate{}, 1)
	assert.IsErr(t, errors.ErrState, err)
}

func TestDistributeFlowCloseRequiresOpenFlow(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 100000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()

	// Closing a flow that was never opened fails, not a silent no-op.
	_, err = e.DistributeFlow(db, sender, sender, p, money.FlowRate{}, 0)
	assert.IsErr(t, errors.ErrState, err)

	// A real close works once, then the flow is gone again.
	_, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(10), 0)
	assert.Nil(t, err)
	_, err = e.DistributeFlow(db, sender, sender, p, money.FlowRate{}, 5)
	assert.Nil(t, err)
	_, err = e.DistributeFlow(db, sender, sender, p, money.FlowRate{}, 5)
	assert.IsErr(t, errors.ErrState, err)
}

func TestDistributeFlowInsolventOpen(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 100)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)

	// Buffer of 100/t over 10 ticks needs 1000, the sender has 100.
	_, err = e.DistributeFlow(db, sender, sender, h.Address(), money.NewFlowRate(100), 0)
	assert.IsErr(t, errors.ErrInsolvent, err)

	// Rolled back whole: no flow, no buffer movement.
	rate, err := e.GetNetFlowRate(db, sender)
	assert.Nil(t, err)
	if !rate.IsZero() {
		t.Fatalf("sender net rate %s after rollback", rate)
	}
	if got := available(t, e, db, sender, 0); !got.Equal(money.NewValue(100)) {
		t.Fatalf("sender balance %s, want 100", got)
	}
}

func TestDistributeFlowMinimumDeposit(t *testing.T) {
	db := flowtest.Store()
	err := SaveConf(db, Configuration{
		LiquidationPeriod: 10,
		PatricianPeriod:   3,
		MinimumDeposit:    money.NewValue(500),
	})
	assert.Nil(t, err)
	e := New("test-chain", nil)

	admin := flowtest.Address(t, "admin")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 100000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)

	// 3/t * 10 = 30 is below the floor.
	ev, err := e.DistributeFlow(db, sender, sender, h.Address(), money.NewFlowRate(3), 0)
	assert.Nil(t, err)
	if !ev.Buffer.Equal(money.NewValue(500)) {
		t.Fatalf("buffer %s, want the 500 minimum", ev.Buffer)
	}
}
