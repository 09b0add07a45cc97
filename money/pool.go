package money

// PDPoolIndex is the aggregate state of a proportional distribution pool.
// The wrapped particle tracks the value trajectory of a single unit; a
// member owning u units is owed u times the per-unit trajectory. This is
// what lets distributions reach any number of members without a
// per-member write.
type PDPoolIndex struct {
	TotalUnits      Unit
	WrappedParticle BasicParticle
}

// SettleAt settles the per-unit trajectory at time t.
func (idx PDPoolIndex) SettleAt(t Time) PDPoolIndex {
	idx.WrappedParticle = idx.WrappedParticle.SettleAt(t)
	return idx
}

// DistributionFlowRate returns the aggregate rate currently distributed
// over members, i.e. the per-unit rate times total units. The adjustment
// remainder is not part of this number.
func (idx PDPoolIndex) DistributionFlowRate() FlowRate {
	return idx.WrappedParticle.FlowRate.MulUnit(idx.TotalUnits)
}

// PDPoolMember is the per-member settlement state. SyncedParticle is a
// snapshot of the pool index's wrapped particle taken the last time this
// member was settled; SettledValue carries the value accrued before that
// point.
type PDPoolMember struct {
	OwnedUnits     Unit
	SettledValue   Value
	SyncedParticle BasicParticle
}

// ClaimableAt returns the value the member is owed at time t: the carry
// plus the per-unit index growth since the last sync, scaled by the
// member's units.
func (m PDPoolMember) ClaimableAt(idx PDPoolIndex, t Time) Value {
	growth := idx.WrappedParticle.BalanceAt(t).Sub(m.SyncedParticle.SettledValue)
	return m.SettledValue.Add(growth.MulUnit(m.OwnedUnits))
}

// FlowRateAt returns the member's live share of the distribution flow.
func (m PDPoolMember) FlowRateAt(idx PDPoolIndex) FlowRate {
	return idx.WrappedParticle.FlowRate.MulUnit(m.OwnedUnits)
}

// SettleAt rolls the member's accrued value into the carry and re-syncs
// the snapshot to the index state at time t.
func (m PDPoolMember) SettleAt(idx PDPoolIndex, t Time) PDPoolMember {
	m.SettledValue = m.ClaimableAt(idx, t)
	m.SyncedParticle = idx.WrappedParticle.SettleAt(t)
	return m
}

// Claim zeroes the member's carry at time t and returns the claimed
// amount. The member keeps accruing from t onward.
func (m PDPoolMember) Claim(idx PDPoolIndex, t Time) (PDPoolMember, Value) {
	settled := m.SettleAt(idx, t)
	claimed := settled.SettledValue
	settled.SettledValue = Value{}
	return settled, claimed
}

// UpdateUnits changes the member's unit count at time t.
//
// The member is settled first so that value accrued under the old unit
// count is preserved in the carry; changing units is equivalent to paying
// out the old units' accrual up to now and starting fresh accrual at the
// new count. The per-unit rate is left alone here - rebalancing the
// aggregate rate against the new total is the caller's job, via ShiftFlow.
func UpdateUnits(idx PDPoolIndex, m PDPoolMember, newUnits Unit, t Time) (PDPoolIndex, PDPoolMember) {
	m = m.SettleAt(idx, t)
	idx = idx.SettleAt(t)
	idx.TotalUnits += newUnits - m.OwnedUnits
	m.OwnedUnits = newUnits
	return idx, m
}

// ShiftFlow moves rateDelta of flow from particle a into the pool index.
//
// Both sides are settled at t first. desired is the full aggregate rate
// the pool should distribute after the shift: the sender-funded total
// with any previously split-out adjustment remainder folded back in,
// plus rateDelta. It is always passed in rather than derived from the
// current per-unit rate, so that repeated rebalances recompute the split
// fresh and cannot drift (and so that a units change can rebalance with a
// zero delta).
//
// Because the per-unit rate must be an integer, only
// floor(desired/units)*units can actually be distributed; the remainder
// is returned as the new adjustment rate and must be routed by the caller
// (it would otherwise be unrecoverable). With zero total units nothing
// can be distributed and the whole desired rate becomes the adjustment.
//
// Returns the updated particle, the updated index, the actually
// distributed aggregate rate and the new adjustment rate.
func ShiftFlow(a BasicParticle, idx PDPoolIndex, desired FlowRate, rateDelta FlowRate, t Time) (BasicParticle, PDPoolIndex, FlowRate, FlowRate) {
	a = a.SettleAt(t)
	idx = idx.SettleAt(t)

	var perUnit FlowRate
	if idx.TotalUnits != 0 {
		perUnit = desired.DivUnit(idx.TotalUnits)
	}
	distributed := perUnit.MulUnit(idx.TotalUnits)
	newAdjustment := desired.Sub(distributed)

	a.FlowRate = a.FlowRate.Sub(rateDelta)
	idx.WrappedParticle = idx.WrappedParticle.WithFlowRate(perUnit)

	return a, idx, distributed, newAdjustment
}

// ShiftValue instantaneously moves amount from particle a into the pool
// index, spread equally over all units.
//
// Only a multiple of the total unit count can be moved without leaving a
// fractional leftover, so the actual amount is the requested one rounded
// down to such a multiple; the difference stays with a. With zero total
// units nothing moves.
//
// Returns the updated particle, the updated index and the actual amount
// moved.
func ShiftValue(a BasicParticle, idx PDPoolIndex, amount Value, t Time) (BasicParticle, PDPoolIndex, Value) {
	a = a.SettleAt(t)
	idx = idx.SettleAt(t)

	var perUnit Value
	if idx.TotalUnits != 0 {
		perUnit = amount.DivUnit(idx.TotalUnits)
	}
	actual := perUnit.MulUnit(idx.TotalUnits)

	a.SettledValue = a.SettledValue.Sub(actual)
	idx.WrappedParticle.SettledValue = idx.WrappedParticle.SettledValue.Add(perUnit)

	return a, idx, actual
}
