package engine

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/ledger"
	"github.com/flowdist/flowdist/money"
)

// RealtimeBalance returns the account's available balance and its total
// buffer at time t. Pure read, no mutation:
//
//	available(t) = own(t) + Σ claimable from connected pools
//
// Buffer deposits already left own(t) for the custody account when the
// flows were opened, so they are reported separately, not subtracted
// again. For a pool account own(t) is the disconnected members' remainder
// trajectory.
func (e *Engine) RealtimeBalance(db flowdist.ReadOnlyKVStore, account flowdist.Address, t money.Time) (money.Value, money.Value, error) {
	return e.realtimeBalance(db, account, t)
}

func (e *Engine) realtimeBalance(db flowdist.ReadOnlyKVStore, account flowdist.Address, t money.Time) (money.Value, money.Value, error) {
	d, _, err := e.ui.Get(db, account)
	if err != nil {
		return money.Value{}, money.Value{}, err
	}
	own := d.Particle.BalanceAt(t)

	occupied, err := e.bitmap.ListOccupied(db, account)
	if err != nil {
		return money.Value{}, money.Value{}, err
	}
	for _, s := range occupied {
		p, exists, err := e.pools.Get(db, s.Pool)
		if err != nil {
			return money.Value{}, money.Value{}, err
		}
		if !exists {
			return money.Value{}, money.Value{}, errors.Wrapf(errors.ErrCorruption,
				"connection slot %d points at unknown pool %s", s.Slot, s.Pool)
		}
		m, err := e.pools.GetMember(db, s.Pool, account)
		if err != nil {
			return money.Value{}, money.Value{}, err
		}
		own = own.Add(m.ClaimableAt(p.Index, t))
	}
	return own, d.TotalBuffer, nil
}

// IsCritical reports whether the account's available balance is negative,
// which opens the third-party liquidation path.
func (e *Engine) IsCritical(db flowdist.ReadOnlyKVStore, account flowdist.Address, t money.Time) (bool, error) {
	available, _, err := e.realtimeBalance(db, account, t)
	if err != nil {
		return false, err
	}
	return available.Sign() < 0, nil
}

// IsSolvent reports whether the account's balance including its buffer
// deposits is still non-negative. A critical but solvent account can be
// liquidated without a bailout.
func (e *Engine) IsSolvent(db flowdist.ReadOnlyKVStore, account flowdist.Address, t money.Time) (bool, error) {
	available, buffer, err := e.realtimeBalance(db, account, t)
	if err != nil {
		return false, err
	}
	return available.Add(buffer).Sign() >= 0, nil
}

// GetNetFlowRate returns the account's net flow rate: its own stored rate
// plus its unit share of every connected pool's distribution.
func (e *Engine) GetNetFlowRate(db flowdist.ReadOnlyKVStore, account flowdist.Address) (money.FlowRate, error) {
	d, _, err := e.ui.Get(db, account)
	if err != nil {
		return money.FlowRate{}, err
	}
	rate := d.Particle.FlowRate

	occupied, err := e.bitmap.ListOccupied(db, account)
	if err != nil {
		return money.FlowRate{}, err
	}
	for _, s := range occupied {
		p, exists, err := e.pools.Get(db, s.Pool)
		if err != nil {
			return money.FlowRate{}, err
		}
		if !exists {
			return money.FlowRate{}, errors.Wrapf(errors.ErrCorruption,
				"connection slot %d points at unknown pool %s", s.Slot, s.Pool)
		}
		m, err := e.pools.GetMember(db, s.Pool, account)
		if err != nil {
			return money.FlowRate{}, err
		}
		rate = rate.Add(m.FlowRateAt(p.Index))
	}
	return rate, nil
}

// GetFlowRate returns the current rate of the (sender, pool) flow, zero
// if no such flow exists.
func (e *Engine) GetFlowRate(db flowdist.ReadOnlyKVStore, from, addr flowdist.Address) (money.FlowRate, error) {
	flow, _, err := e.records.GetFlow(db, ledger.FlowDistributionID(e.chainID, from, addr))
	if err != nil {
		return money.FlowRate{}, err
	}
	return flow.FlowRate, nil
}

// PoolTotalUnits returns the pool's current unit total.
func (e *Engine) PoolTotalUnits(db flowdist.ReadOnlyKVStore, addr flowdist.Address) (money.Unit, error) {
	p, err := e.loadPool(db, addr)
	if err != nil {
		return 0, err
	}
	return p.Index.TotalUnits, nil
}

// IsMemberConnected reports whether the member is currently connected to
// the pool.
func (e *Engine) IsMemberConnected(db flowdist.ReadOnlyKVStore, addr, member flowdist.Address) (bool, error) {
	m, err := e.pools.GetMember(db, addr, member)
	if err != nil {
		return false, err
	}
	return m.Connected, nil
}

// ConnectedPools enumerates all pools the account is connected to, in
// connection slot order.
func (e *Engine) ConnectedPools(db flowdist.ReadOnlyKVStore, account flowdist.Address) ([]flowdist.Address, error) {
	occupied, err := e.bitmap.ListOccupied(db, account)
	if err != nil {
		return nil, err
	}
	pools := make([]flowdist.Address, 0, len(occupied))
	for _, s := range occupied {
		pools = append(pools, s.Pool)
	}
	return pools, nil
}
