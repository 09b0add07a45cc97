package pool

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/money"
)

// Pool is the stored state of a distribution pool.
//
// TotalDistributionRate is the sender-funded aggregate rate, the sum of
// all (sender, pool) flow record rates. The per-unit split is always
// derived fresh from it and the current unit total, so repeated
// rebalances cannot drift.
type Pool struct {
	Admin                 flowdist.Address
	Index                 money.PDPoolIndex
	DisconnectedUnits     money.Unit
	TotalDistributionRate money.FlowRate
}

// Validate sanity checks the stored state.
func (p Pool) Validate() error {
	if err := p.Admin.Validate(); err != nil {
		return errors.Wrap(err, "admin")
	}
	if p.Index.TotalUnits < 0 {
		return errors.Wrapf(errors.ErrState, "negative total units: %d", p.Index.TotalUnits)
	}
	if p.DisconnectedUnits < 0 || p.DisconnectedUnits > p.Index.TotalUnits {
		return errors.Wrapf(errors.ErrState, "disconnected units %d of %d", p.DisconnectedUnits, p.Index.TotalUnits)
	}
	return nil
}

// ConnectedUnits returns the unit total of currently connected members.
func (p Pool) ConnectedUnits() money.Unit {
	return p.Index.TotalUnits - p.DisconnectedUnits
}

// Member is the stored per-member settlement state of a pool.
type Member struct {
	money.PDPoolMember
	Connected bool
}

// Exists reports whether the member ever held units or is connected.
// Historical membership may persist in storage after units drop to zero.
func (m Member) Exists() bool {
	return m.Connected || m.OwnedUnits != 0 || !m.SettledValue.IsZero() || !m.SyncedParticle.IsZero()
}
