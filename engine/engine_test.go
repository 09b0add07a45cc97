package engine

import (
	"testing"

	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/flowtest"
	"github.com/flowdist/flowdist/flowtest/assert"
	"github.com/flowdist/flowdist/ledger"
	"github.com/flowdist/flowdist/money"
)

func newTestEngine(t testing.TB) (*Engine, flowdist.CacheableKVStore) {
	t.Helper()
	db := flowtest.Store()
	err := SaveConf(db, Configuration{
		LiquidationPeriod: 10,
		PatricianPeriod:   3,
	})
	assert.Nil(t, err)
	return New("test-chain", nil), db
}

func seedAccount(t testing.TB, e *Engine, db flowdist.KVStore, addr flowdist.Address, amount int64) {
	t.Helper()
	err := e.ui.Set(db, addr, ledger.UniversalIndexData{
		Particle: money.BasicParticle{SettledValue: money.NewValue(amount)},
	})
	assert.Nil(t, err)
}

func available(t testing.TB, e *Engine, db flowdist.ReadOnlyKVStore, addr flowdist.Address, at money.Time) money.Value {
	t.Helper()
	v, _, err := e.RealtimeBalance(db, addr, at)
	assert.Nil(t, err)
	return v
}

func TestCreatePool(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")

	h, err := e.CreatePool(db, admin, 5)
	assert.Nil(t, err)
	assert.Nil(t, h.Address().Validate())

	// The handle can be re-minted from the ledger's pool tag.
	again, err := e.VerifyPool(db, h.Address())
	assert.Nil(t, err)
	assert.Equal(t, h.Address(), again.Address())

	// A plain account is no pool.
	_, err = e.VerifyPool(db, flowtest.Address(t, "nobody"))
	assert.IsErr(t, errors.ErrUnauthorized, err)

	// Every call makes a distinct pool.
	h2, err := e.CreatePool(db, admin, 5)
	assert.Nil(t, err)
	if h.Address().Equals(h2.Address()) {
		t.Fatal("pool addresses must be distinct")
	}
}

func TestCreatePoolZeroAdmin(t *testing.T) {
	e, db := newTestEngine(t)
	_, err := e.CreatePool(db, nil, 5)
	if err == nil {
		t.Fatal("zero admin must be rejected")
	}
}

func TestConnectDisconnectIdempotent(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	member := flowtest.Address(t, "member")

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, member, 5, 0))

	assert.Nil(t, e.ConnectPool(db, p, member, 0))
	before := available(t, e, db, member, 0)

	// A duplicate connect changes nothing observable.
	assert.Nil(t, e.ConnectPool(db, p, member, 0))
	connected, err := e.IsMemberConnected(db, p, member)
	assert.Nil(t, err)
	assert.Equal(t, true, connected)
	pools, err := e.ConnectedPools(db, member)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(pools))
	if !before.Equal(available(t, e, db, member, 0)) {
		t.Fatal("duplicate connect changed the member balance")
	}

	assert.Nil(t, e.DisconnectPool(db, p, member, 0))
	assert.Nil(t, e.DisconnectPool(db, p, member, 0))
	connected, err = e.IsMemberConnected(db, p, member)
	assert.Nil(t, err)
	assert.Equal(t, false, connected)
	pools, err = e.ConnectedPools(db, member)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(pools))
}

func TestConnectUnknownPool(t *testing.T) {
	e, db := newTestEngine(t)
	err := e.ConnectPool(db, flowtest.Address(t, "ghost"), flowtest.Address(t, "member"), 0)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestUpdateMemberUnitsAuthorization(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	member := flowtest.Address(t, "member")

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)

	err = e.UpdateMemberUnits(db, member, h.Address(), member, 5, 0)
	assert.IsErr(t, errors.ErrUnauthorized, err)

	err = e.UpdateMemberUnits(db, admin, h.Address(), member, -1, 0)
	assert.IsErr(t, errors.ErrInput, err)

	assert.Nil(t, e.UpdateMemberUnits(db, admin, h.Address(), member, 5, 0))
	units, err := e.PoolTotalUnits(db, h.Address())
	assert.Nil(t, err)
	assert.Equal(t, money.Unit(5), units)
}

func TestLateJoinerDoesNotAccrueRetroactively(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")
	alice := flowtest.Address(t, "alice")
	bob := flowtest.Address(t, "bob")
	sender := flowtest.Address(t, "sender")
	seedAccount(t, e, db, sender, 10000)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)
	p := h.Address()
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, alice, 4, 0))

	// Rate 100 over 4 units: 25 per unit, no remainder.
	_, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(100), 0)
	assert.Nil(t, err)

	// Bob joins at t=10 with 1 unit: 20 per unit from now on.
	assert.Nil(t, e.UpdateMemberUnits(db, admin, p, bob, 1, 10))
	assert.Nil(t, e.ConnectPool(db, p, bob, 10))

	// Ten ticks later bob accrued only his share since joining.
	if got := available(t, e, db, bob, 20); !got.Equal(money.NewValue(200)) {
		t.Fatalf("bob accrued %s, want 200", got)
	}

	// Alice accrued under both rates and can pull it all.
	claimed, err := e.ClaimAll(db, p, alice, 20)
	assert.Nil(t, err)
	if !claimed.Equal(money.NewValue(1800)) {
		t.Fatalf("alice claimed %s, want 1800", claimed)
	}
	if got := available(t, e, db, alice, 20); !got.Equal(money.NewValue(1800)) {
		t.Fatalf("alice balance %s, want 1800", got)
	}

	// The claim drained exactly the disconnected remainder.
	if got := available(t, e, db, p, 20); !got.Equal(money.NewValue(0)) {
		t.Fatalf("pool account balance %s, want 0", got)
	}

	// Claiming again right away yields nothing.
	claimed, err = e.ClaimAll(db, p, alice, 20)
	assert.Nil(t, err)
	if !claimed.IsZero() {
		t.Fatalf("second claim yielded %s", claimed)
	}
}

func TestNetFlowRateConservation(t *testing.T) {
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

	_, err = e.DistributeFlow(db, sender, sender, p, money.NewFlowRate(100), 0)
	assert.Nil(t, err)
	assert.Nil(t, e.ConnectPool(db, p, bob, 0))

	sum := money.FlowRate{}
	for _, a := range []flowdist.Address{sender, admin, alice, bob, p} {
		rate, err := e.GetNetFlowRate(db, a)
		assert.Nil(t, err)
		sum = sum.Add(rate)
	}
	if !sum.IsZero() {
		t.Fatalf("net flow rates sum to %s, want 0", sum)
	}

	// Alice is disconnected, so her share stays on the pool account.
	poolRate, err := e.GetNetFlowRate(db, p)
	assert.Nil(t, err)
	if !poolRate.Equal(money.NewFlowRate(56)) {
		t.Fatalf("pool net rate %s, want 56", poolRate)
	}
	bobRate, err := e.GetNetFlowRate(db, bob)
	assert.Nil(t, err)
	if !bobRate.Equal(money.NewFlowRate(42)) {
		t.Fatalf("bob net rate %s, want 42", bobRate)
	}
}

func TestPoolCapabilityGate(t *testing.T) {
	e, db := newTestEngine(t)
	admin := flowtest.Address(t, "admin")

	err := e.PoolSettleClaim(db, PoolHandle{}, admin, money.NewValue(1), 0)
	assert.IsErr(t, errors.ErrUnauthorized, err)
	err = e.AppendIndexUpdateByPool(db, PoolHandle{}, money.BasicParticle{}, 0)
	assert.IsErr(t, errors.ErrUnauthorized, err)

	h, err := e.CreatePool(db, admin, 0)
	assert.Nil(t, err)

	// A held capability allows merging into the pool trajectory.
	err = e.AppendIndexUpdateByPool(db, h, money.BasicParticle{FlowRate: money.NewFlowRate(7)}, 0)
	assert.Nil(t, err)
	rate, err := e.GetNetFlowRate(db, h.Address())
	assert.Nil(t, err)
	if !rate.Equal(money.NewFlowRate(7)) {
		t.Fatalf("pool net rate %s, want 7", rate)
	}
}
