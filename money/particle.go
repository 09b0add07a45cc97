package money

// BasicParticle is an immutable snapshot of an account's settled value and
// flow rate as of a settlement time. The balance at any later time is
// derived by linear projection:
//
//	balance(t) = SettledValue + FlowRate*(t - SettledAt)
//
// Projecting backward in time is undefined; callers must never query a
// particle before its settlement time.
type BasicParticle struct {
	SettledAt    Time
	FlowRate     FlowRate
	SettledValue Value
}

// BalanceAt returns the projected balance at time t. Requires
// t >= SettledAt in modular terms.
func (p BasicParticle) BalanceAt(t Time) Value {
	return p.SettledValue.Add(p.FlowRate.MulTime(t.Since(p.SettledAt)))
}

// SettleAt rolls the accumulated value into the settled value and
// advances the settlement time to t, zeroing the projection debt. The
// flow rate is unchanged.
func (p BasicParticle) SettleAt(t Time) BasicParticle {
	return BasicParticle{
		SettledAt:    t,
		FlowRate:     p.FlowRate,
		SettledValue: p.BalanceAt(t),
	}
}

// WithFlowRate returns a copy of the particle with the flow rate replaced.
// Settle first, or the rate change rewrites history.
func (p BasicParticle) WithFlowRate(r FlowRate) BasicParticle {
	p.FlowRate = r
	return p
}

// ShiftFlowRate settles the particle at t and then adds delta to its flow
// rate.
func (p BasicParticle) ShiftFlowRate(delta FlowRate, t Time) BasicParticle {
	s := p.SettleAt(t)
	s.FlowRate = s.FlowRate.Add(delta)
	return s
}

// ShiftValue settles the particle at t and then adds amount to its
// settled value.
func (p BasicParticle) ShiftValue(amount Value, t Time) BasicParticle {
	s := p.SettleAt(t)
	s.SettledValue = s.SettledValue.Add(amount)
	return s
}

// Merge settles both particles at t and combines their flow rates and
// settled values. Used when an aggregate trajectory absorbs an external
// flow change, for example a pool account taking over an adjustment flow.
func (p BasicParticle) Merge(o BasicParticle, t Time) BasicParticle {
	a := p.SettleAt(t)
	b := o.SettleAt(t)
	return BasicParticle{
		SettledAt:    t,
		FlowRate:     a.FlowRate.Add(b.FlowRate),
		SettledValue: a.SettledValue.Add(b.SettledValue),
	}
}

// IsZero returns true for a particle indistinguishable from a fresh one.
func (p BasicParticle) IsZero() bool {
	return p.SettledAt == 0 && p.FlowRate.IsZero() && p.SettledValue.IsZero()
}
