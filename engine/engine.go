package engine

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/ledger"
	"github.com/flowdist/flowdist/money"
	"github.com/flowdist/flowdist/pool"
)

// Engine is the distribution agreement orchestrator. It composes the
// money algebra, the slot ledger records and the pool entities into the
// public operation surface.
//
// Every mutating entry point runs inside a cache wrap of the given store:
// on any error all writes are discarded, so no partially applied mutation
// is ever observable. Emissions fire only after a successful write back.
type Engine struct {
	chainID string
	emitter Emitter

	ui      ledger.UniversalIndexBucket
	records ledger.RecordBucket
	bitmap  ledger.ConnectionBitmap
	pools   pool.Bucket

	custody flowdist.Address
	reward  flowdist.Address
}

// New returns an engine bound to a chain id. A nil emitter silences all
// emissions.
func New(chainID string, emitter Emitter) *Engine {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Engine{
		chainID: chainID,
		emitter: emitter,
		ui:      ledger.NewUniversalIndexBucket(),
		records: ledger.NewRecordBucket(),
		bitmap:  ledger.NewConnectionBitmap(),
		pools:   pool.NewBucket(),
		custody: CustodyAccount(chainID),
		reward:  RewardAccount(chainID),
	}
}

// CustodyAccount derives the address holding all flow buffers of a chain.
func CustodyAccount(chainID string) flowdist.Address {
	return flowdist.NewCondition("flowdist", "custody", []byte(chainID)).Address()
}

// RewardAccount derives the address socializing bailout shortfalls.
func RewardAccount(chainID string) flowdist.Address {
	return flowdist.NewCondition("flowdist", "reward", []byte(chainID)).Address()
}

// PoolHandle is the capability to call pool-only entry points. It can
// only be obtained from CreatePool or from VerifyPool, which checks the
// ledger's pool tag, so holding one proves the address is a pool.
type PoolHandle struct {
	addr flowdist.Address
}

// Address returns the pool account address behind the handle.
func (h PoolHandle) Address() flowdist.Address {
	return h.addr
}

// VerifyPool mints a pool handle after checking that the account carries
// the pool tag in the ledger.
func (e *Engine) VerifyPool(db flowdist.ReadOnlyKVStore, addr flowdist.Address) (PoolHandle, error) {
	d, exists, err := e.ui.Get(db, addr)
	if err != nil {
		return PoolHandle{}, err
	}
	if !exists || !d.IsPool {
		return PoolHandle{}, errors.Wrapf(errors.ErrUnauthorized, "%s is not a pool", addr)
	}
	return PoolHandle{addr: addr}, nil
}

// run executes fn inside a cache wrap, discarding on error.
func (e *Engine) run(db flowdist.CacheableKVStore, fn func(flowdist.KVStore) error) error {
	cache := db.CacheWrap()
	if err := fn(cache); err != nil {
		cache.Discard()
		return err
	}
	return cache.Write()
}

func (e *Engine) loadPool(db flowdist.ReadOnlyKVStore, addr flowdist.Address) (pool.Pool, error) {
	p, exists, err := e.pools.Get(db, addr)
	if err != nil {
		return p, err
	}
	if !exists {
		return p, errors.Wrapf(errors.ErrNotFound, "pool %s", addr)
	}
	return p, nil
}

// shiftValue moves amount between two accounts' settled values at time t.
// Accounts are re-read one at a time, so from and to may be the same
// address without clobbering.
func (e *Engine) shiftValue(db flowdist.KVStore, from, to flowdist.Address, amount money.Value, t money.Time) error {
	if amount.IsZero() {
		return nil
	}
	fd, _, err := e.ui.Get(db, from)
	if err != nil {
		return err
	}
	fd.Particle = fd.Particle.ShiftValue(amount.Neg(), t)
	if err := e.ui.Set(db, from, fd); err != nil {
		return err
	}
	td, _, err := e.ui.Get(db, to)
	if err != nil {
		return err
	}
	td.Particle = td.Particle.ShiftValue(amount, t)
	return e.ui.Set(db, to, td)
}

// syncPoolAccount rewrites the pool account's own flow rate to the
// disconnected members' share of the distribution. Connected members'
// shares never touch the pool account; they surface in each member's
// realtime balance instead.
func (e *Engine) syncPoolAccount(db flowdist.KVStore, addr flowdist.Address, p pool.Pool, t money.Time) error {
	d, _, err := e.ui.Get(db, addr)
	if err != nil {
		return err
	}
	rate := p.Index.WrappedParticle.FlowRate.MulUnit(p.DisconnectedUnits)
	d.Particle = d.Particle.SettleAt(t).WithFlowRate(rate)
	d.IsPool = true
	return e.ui.Set(db, addr, d)
}

// setAdjustmentFlow replaces the pool's adjustment flow with the new
// remainder rate, shifting the admin's own flow rate by the difference.
func (e *Engine) setAdjustmentFlow(db flowdist.KVStore, addr, admin flowdist.Address, newAdj money.FlowRate, t money.Time) error {
	id := ledger.PoolAdjustmentID(e.chainID, addr)
	cur, _, err := e.records.GetFlow(db, id)
	if err != nil {
		return err
	}
	if delta := newAdj.Sub(cur.FlowRate); !delta.IsZero() {
		ad, _, err := e.ui.Get(db, admin)
		if err != nil {
			return err
		}
		ad.Particle = ad.Particle.ShiftFlowRate(delta, t)
		if err := e.ui.Set(db, admin, ad); err != nil {
			return err
		}
	}
	if newAdj.IsZero() {
		return e.records.Terminate(db, id)
	}
	return e.records.SetFlow(db, id, ledger.FlowDistributionData{
		LastUpdated: t,
		FlowRate:    newAdj,
	})
}

// rebalancePool re-derives the per-unit rate split of the sender-funded
// total from scratch and routes the new remainder through the adjustment
// flow. Stateless recomputation: nothing is patched incrementally, so
// repeated calls with unchanged inputs are idempotent.
func (e *Engine) rebalancePool(db flowdist.KVStore, addr flowdist.Address, p *pool.Pool, t money.Time) (money.FlowRate, money.FlowRate, error) {
	_, idx, distributed, adj := money.ShiftFlow(money.BasicParticle{}, p.Index, p.TotalDistributionRate, money.FlowRate{}, t)
	p.Index = idx
	if err := e.setAdjustmentFlow(db, addr, p.Admin, adj, t); err != nil {
		return distributed, adj, err
	}
	return distributed, adj, e.syncPoolAccount(db, addr, *p, t)
}

// CreatePool instantiates a new pool entity administered by admin and
// returns its capability handle. Every call creates a distinct pool.
func (e *Engine) CreatePool(db flowdist.CacheableKVStore, admin flowdist.Address, t money.Time) (PoolHandle, error) {
	if err := admin.Validate(); err != nil {
		return PoolHandle{}, errors.Wrap(err, "admin")
	}
	var addr flowdist.Address
	err := e.run(db, func(cache flowdist.KVStore) error {
		id, err := e.pools.NextID(cache)
		if err != nil {
			return err
		}
		addr = pool.PoolAccount(id)
		p := pool.Pool{
			Admin: admin,
			Index: money.PDPoolIndex{
				WrappedParticle: money.BasicParticle{SettledAt: t},
			},
		}
		if err := e.pools.Save(cache, addr, p); err != nil {
			return err
		}
		return e.ui.Set(cache, addr, ledger.UniversalIndexData{
			Particle: money.BasicParticle{SettledAt: t},
			IsPool:   true,
		})
	})
	if err != nil {
		return PoolHandle{}, err
	}
	e.emitter.PoolCreated(PoolCreated{Pool: addr, Admin: admin})
	return PoolHandle{addr: addr}, nil
}

// ConnectPool connects member to the pool. Connecting an already
// connected member is a no-op beyond the emission.
//
// Any value accrued while disconnected is claimed to the member's own
// account first, because from now on the member's share surfaces in their
// realtime balance and a stale carry would count twice. The unit move
// between the disconnected and connected aggregates is atomic with the
// bitmap write; both live in the same cache wrap.
func (e *Engine) ConnectPool(db flowdist.CacheableKVStore, addr, member flowdist.Address, t money.Time) error {
	var ev MembershipChanged
	err := e.run(db, func(cache flowdist.KVStore) error {
		p, err := e.loadPool(cache, addr)
		if err != nil {
			return err
		}
		m, err := e.pools.GetMember(cache, addr, member)
		if err != nil {
			return err
		}
		ev = MembershipChanged{Pool: addr, Member: member, Connected: true, Units: m.OwnedUnits}
		if m.Connected {
			return nil
		}

		pm, claimed := m.Claim(p.Index, t)
		m.PDPoolMember = pm
		if err := e.shiftValue(cache, addr, member, claimed, t); err != nil {
			return err
		}

		slot, err := e.bitmap.FindAndFillSlot(cache, member, addr)
		if err != nil {
			return err
		}
		id := ledger.PoolMemberID(e.chainID, member, addr)
		if err := e.records.SetPoolMember(cache, id, ledger.PoolMemberData{Pool: addr, PoolID: slot}); err != nil {
			return err
		}

		m.Connected = true
		p.DisconnectedUnits -= m.OwnedUnits
		if err := e.pools.SaveMember(cache, addr, member, m); err != nil {
			return err
		}
		if err := e.pools.Save(cache, addr, p); err != nil {
			return err
		}
		return e.syncPoolAccount(cache, addr, p, t)
	})
	if err != nil {
		return err
	}
	e.emitter.MembershipChanged(ev)
	return nil
}

// DisconnectPool disconnects member from the pool. Disconnecting an
// already disconnected member is a no-op beyond the emission.
//
// The accrual since connecting is claimed to the member's own account
// before the flag flips, mirroring ConnectPool: afterwards the member's
// share accrues against the pool account again.
func (e *Engine) DisconnectPool(db flowdist.CacheableKVStore, addr, member flowdist.Address, t money.Time) error {
	var ev MembershipChanged
	err := e.run(db, func(cache flowdist.KVStore) error {
		p, err := e.loadPool(cache, addr)
		if err != nil {
			return err
		}
		m, err := e.pools.GetMember(cache, addr, member)
		if err != nil {
			return err
		}
		ev = MembershipChanged{Pool: addr, Member: member, Connected: false, Units: m.OwnedUnits}
		if !m.Connected {
			return nil
		}

		pm, claimed := m.Claim(p.Index, t)
		m.PDPoolMember = pm
		if err := e.shiftValue(cache, addr, member, claimed, t); err != nil {
			return err
		}

		id := ledger.PoolMemberID(e.chainID, member, addr)
		rec, exists, err := e.records.GetPoolMember(cache, id)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(errors.ErrCorruption, "connected member %s has no connection record", member)
		}
		if err := e.bitmap.ClearSlot(cache, member, rec.PoolID); err != nil {
			return err
		}
		if err := e.records.Terminate(cache, id); err != nil {
			return err
		}

		m.Connected = false
		p.DisconnectedUnits += m.OwnedUnits
		if err := e.pools.SaveMember(cache, addr, member, m); err != nil {
			return err
		}
		if err := e.pools.Save(cache, addr, p); err != nil {
			return err
		}
		return e.syncPoolAccount(cache, addr, p, t)
	})
	if err != nil {
		return err
	}
	e.emitter.MembershipChanged(ev)
	return nil
}

// UpdateMemberUnits changes a member's unit count. Only the pool admin
// may call it.
//
// The member is settled before the rescale, so value accrued under the
// old unit count is preserved; the per-unit split of the total
// distribution rate is then recomputed against the new unit total.
func (e *Engine) UpdateMemberUnits(db flowdist.CacheableKVStore, caller, addr, member flowdist.Address, units money.Unit, t money.Time) error {
	if units < 0 {
		return errors.Wrapf(errors.ErrInput, "negative units: %d", units)
	}
	var ev MembershipChanged
	err := e.run(db, func(cache flowdist.KVStore) error {
		p, err := e.loadPool(cache, addr)
		if err != nil {
			return err
		}
		if !caller.Equals(p.Admin) {
			return errors.Wrapf(errors.ErrUnauthorized, "only the pool admin may update units")
		}
		m, err := e.pools.GetMember(cache, addr, member)
		if err != nil {
			return err
		}

		old := m.OwnedUnits
		idx, pm := money.UpdateUnits(p.Index, m.PDPoolMember, units, t)
		p.Index = idx
		m.PDPoolMember = pm
		if !m.Connected {
			p.DisconnectedUnits += units - old
		}

		if _, _, err := e.rebalancePool(cache, addr, &p, t); err != nil {
			return err
		}
		if err := e.pools.SaveMember(cache, addr, member, m); err != nil {
			return err
		}
		if err := e.pools.Save(cache, addr, p); err != nil {
			return err
		}
		ev = MembershipChanged{Pool: addr, Member: member, Connected: m.Connected, Units: units}
		return nil
	})
	if err != nil {
		return err
	}
	e.emitter.MembershipChanged(ev)
	return nil
}

// ClaimAll pulls the member's entire accrued value out of the pool into
// the member's own account. Works for connected and disconnected members
// alike; the member keeps accruing from t onward.
func (e *Engine) ClaimAll(db flowdist.CacheableKVStore, addr, member flowdist.Address, t money.Time) (money.Value, error) {
	var claimed money.Value
	err := e.run(db, func(cache flowdist.KVStore) error {
		p, err := e.loadPool(cache, addr)
		if err != nil {
			return err
		}
		m, err := e.pools.GetMember(cache, addr, member)
		if err != nil {
			return err
		}
		var pm money.PDPoolMember
		pm, claimed = m.Claim(p.Index, t)
		m.PDPoolMember = pm
		if err := e.pools.SaveMember(cache, addr, member, m); err != nil {
			return err
		}
		return e.shiftValue(cache, addr, member, claimed, t)
	})
	if err != nil {
		return money.Value{}, err
	}
	e.emitter.Claimed(Claimed{Pool: addr, Member: member, Amount: claimed})
	return claimed, nil
}

// PoolSettleClaim moves a settled claim amount from the pool account to
// the recipient. Callable only with a pool capability handle.
func (e *Engine) PoolSettleClaim(db flowdist.CacheableKVStore, h PoolHandle, to flowdist.Address, amount money.Value, t money.Time) error {
	if h.addr.IsEmpty() {
		return errors.Wrap(errors.ErrUnauthorized, "zero pool handle")
	}
	return e.run(db, func(cache flowdist.KVStore) error {
		return e.shiftValue(cache, h.addr, to, amount, t)
	})
}

// AppendIndexUpdateByPool merges an externally produced particle into the
// pool account's own trajectory. Callable only with a pool capability
// handle.
func (e *Engine) AppendIndexUpdateByPool(db flowdist.CacheableKVStore, h PoolHandle, p money.BasicParticle, t money.Time) error {
	if h.addr.IsEmpty() {
		return errors.Wrap(errors.ErrUnauthorized, "zero pool handle")
	}
	return e.run(db, func(cache flowdist.KVStore) error {
		d, _, err := e.ui.Get(cache, h.addr)
		if err != nil {
			return err
		}
		d.Particle = d.Particle.Merge(p, t)
		d.IsPool = true
		return e.ui.Set(cache, h.addr, d)
	})
}
