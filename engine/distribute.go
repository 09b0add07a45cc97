package engine

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/ledger"
	"github.com/flowdist/flowdist/money"
)

// Distribute instantaneously moves value from the sender into the pool,
// spread proportionally over the current units. Only the sender may
// distribute; there is no third-party instantaneous path.
//
// The actual amount is the requested one rounded down to a multiple of
// the total units; the remainder stays with the sender. The shift is
// performed first and the sender's resulting realtime balance checked
// after, so an overdrawing distribution rolls back whole.
func (e *Engine) Distribute(db flowdist.CacheableKVStore, caller, from, addr flowdist.Address, amount money.Value, t money.Time) (money.Value, error) {
	if !caller.Equals(from) {
		return money.Value{}, errors.Wrap(errors.ErrUnauthorized, "only the sender may distribute")
	}
	if amount.Sign() < 0 {
		return money.Value{}, errors.Wrapf(errors.ErrInput, "negative amount: %s", amount)
	}
	var actual money.Value
	err := e.run(db, func(cache flowdist.KVStore) error {
		p, err := e.loadPool(cache, addr)
		if err != nil {
			return err
		}
		sd, _, err := e.ui.Get(cache, from)
		if err != nil {
			return err
		}

		var sp money.BasicParticle
		sp, p.Index, actual = money.ShiftValue(sd.Particle, p.Index, amount, t)
		sd.Particle = sp
		if err := e.ui.Set(cache, from, sd); err != nil {
			return err
		}
		if err := e.pools.Save(cache, addr, p); err != nil {
			return err
		}

		// The disconnected members' share lands on the pool account;
		// connected members see theirs through their realtime balance.
		if p.Index.TotalUnits != 0 {
			share := actual.DivUnit(p.Index.TotalUnits).MulUnit(p.DisconnectedUnits)
			if !share.IsZero() {
				pd, _, err := e.ui.Get(cache, addr)
				if err != nil {
					return err
				}
				pd.Particle = pd.Particle.ShiftValue(share, t)
				if err := e.ui.Set(cache, addr, pd); err != nil {
					return err
				}
			}
		}

		available, _, err := e.realtimeBalance(cache, from, t)
		if err != nil {
			return err
		}
		if available.Sign() < 0 {
			return errors.Wrapf(errors.ErrInsolvent, "distribution overdraws sender by %s", available.Neg())
		}
		return nil
	})
	if err != nil {
		return money.Value{}, err
	}
	e.emitter.Distributed(Distributed{From: from, Pool: addr, Requested: amount, Actual: actual})
	return actual, nil
}

// DistributeFlow opens, changes or closes the continuous distribution
// flow from the sender to the pool.
//
// Closing (requested rate zero) requires an open flow for the pair.
// Third parties may only close, and only while the sender's realtime
// balance is negative; that path is the liquidation and pays the caller
// a reward out of the flow's buffer.
//
// The buffer is always re-sized off the new rate against the current
// governance parameters, floored at the minimum deposit while the flow is
// open. A rate decrease can therefore still increase the required buffer
// if governance raised the liquidation period since the last adjustment.
func (e *Engine) DistributeFlow(db flowdist.CacheableKVStore, caller, from, addr flowdist.Address, requested money.FlowRate, t money.Time) (FlowUpdated, error) {
	if requested.Sign() < 0 {
		return FlowUpdated{}, errors.Wrapf(errors.ErrInput, "negative flow rate: %s", requested)
	}
	thirdParty := !caller.Equals(from)
	if thirdParty && requested.Sign() > 0 {
		return FlowUpdated{}, errors.Wrap(errors.ErrUnauthorized, "third party cannot open or increase a flow")
	}

	var (
		ev  FlowUpdated
		liq *payout
	)
	err := e.run(db, func(cache flowdist.KVStore) error {
		p, err := e.loadPool(cache, addr)
		if err != nil {
			return err
		}
		conf, err := loadConf(cache)
		if err != nil {
			return err
		}
		flowID := ledger.FlowDistributionID(e.chainID, from, addr)
		flow, opened, err := e.records.GetFlow(cache, flowID)
		if err != nil {
			return err
		}
		// A close must target an open flow. Without this a liquidator
		// could "close" a ghost pair and draw bailout money from the
		// reward account while the real flow keeps streaming.
		if requested.IsZero() && (!opened || flow.FlowRate.IsZero()) {
			return errors.Wrapf(errors.ErrState, "no open flow from %s to %s", from, addr)
		}

		if thirdParty {
			available, totalBuffer, err := e.realtimeBalance(cache, from, t)
			if err != nil {
				return err
			}
			if available.Sign() >= 0 {
				return errors.Wrap(errors.ErrState, "sender is not critical, cannot be liquidated")
			}
			out := computePayout(available, totalBuffer, flow.Buffer, conf)
			liq = &out
		}

		sd, _, err := e.ui.Get(cache, from)
		if err != nil {
			return err
		}
		newTotal := p.TotalDistributionRate.Sub(flow.FlowRate).Add(requested)
		sp, idx, distributed, adj := money.ShiftFlow(sd.Particle, p.Index, newTotal, requested.Sub(flow.FlowRate), t)
		sd.Particle = sp
		if err := e.ui.Set(cache, from, sd); err != nil {
			return err
		}
		p.Index = idx
		p.TotalDistributionRate = newTotal
		if err := e.setAdjustmentFlow(cache, addr, p.Admin, adj, t); err != nil {
			return err
		}
		if err := e.syncPoolAccount(cache, addr, p, t); err != nil {
			return err
		}
		if err := e.pools.Save(cache, addr, p); err != nil {
			return err
		}

		var newBuffer money.Value
		if requested.Sign() > 0 {
			newBuffer = requested.MulTime(conf.LiquidationPeriod)
			if newBuffer.Cmp(conf.MinimumDeposit) < 0 {
				newBuffer = conf.MinimumDeposit
			}
		}
		delta := newBuffer.Sub(flow.Buffer)
		if err := e.shiftValue(cache, from, e.custody, delta, t); err != nil {
			return err
		}
		sd, _, err = e.ui.Get(cache, from)
		if err != nil {
			return err
		}
		sd.TotalBuffer = sd.TotalBuffer.Add(delta)
		if err := e.ui.Set(cache, from, sd); err != nil {
			return err
		}

		if requested.IsZero() && newBuffer.IsZero() {
			if err := e.records.Terminate(cache, flowID); err != nil {
				return err
			}
		} else {
			if err := e.records.SetFlow(cache, flowID, ledger.FlowDistributionData{
				LastUpdated: t,
				FlowRate:    requested,
				Buffer:      newBuffer,
			}); err != nil {
				return err
			}
		}

		if !thirdParty && requested.Sign() > 0 {
			available, _, err := e.realtimeBalance(cache, from, t)
			if err != nil {
				return err
			}
			if available.Sign() < 0 {
				return errors.Wrapf(errors.ErrInsolvent, "flow overdraws sender by %s", available.Neg())
			}
		}

		if liq != nil {
			// The buffer refund above already returned the deposit to
			// the sender. In the critical case the sender pays the
			// reward out of it; in the bailout case the reward account
			// pays the liquidator and tops the sender back up to even.
			if liq.Bailout.IsZero() {
				if err := e.shiftValue(cache, from, caller, liq.Reward, t); err != nil {
					return err
				}
			} else {
				if err := e.shiftValue(cache, e.reward, caller, liq.Reward, t); err != nil {
					return err
				}
				if err := e.shiftValue(cache, e.reward, from, liq.Bailout, t); err != nil {
					return err
				}
			}
		}

		ev = FlowUpdated{
			From:                from,
			Pool:                addr,
			OldRate:             flow.FlowRate,
			NewRate:             requested,
			Distributed:         distributed,
			Adjustment:          adj,
			AdjustmentRecipient: p.Admin,
			Buffer:              newBuffer,
		}
		return nil
	})
	if err != nil {
		return FlowUpdated{}, err
	}
	e.emitter.FlowUpdated(ev)
	if liq != nil {
		e.emitter.Liquidated(Liquidated{
			Sender:     from,
			Liquidator: caller,
			Pool:       addr,
			Reward:     liq.Reward,
			Bailout:    liq.Bailout,
			Patrician:  liq.Patrician,
		})
	}
	return ev, nil
}
