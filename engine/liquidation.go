package engine

import (
	"math/big"

	"github.com/flowdist/flowdist/money"
)

// payout is the outcome of liquidating one flow of a critical sender.
//
// Reward is what the liquidator collects from the sender, after the
// flow's buffer was already refunded to the sender by the close. Bailout
// is zero in the critical case; in the bailout case it is the global
// shortfall covered by the reward account.
type payout struct {
	Reward    money.Value
	Bailout   money.Value
	Patrician bool
}

// computePayout derives the liquidation outcome from the sender's
// available balance (negative here), the sender's total buffer across all
// flows and the closed flow's own buffer.
//
// Critical case (deposits still cover the deficit): the liquidator earns
// the flow's proportional share of what is left, paid by the sender out
// of the refunded buffer, so reward plus the sender's retained refund sum
// exactly to the flow's buffer. Bailout case: the reward account pays the
// liquidator the full flow buffer and covers the shortfall, instead of
// charging the insolvent sender further.
func computePayout(available, totalBuffer, singleDeposit money.Value, conf Configuration) payout {
	totalRewardLeft := available.Add(totalBuffer)
	if totalRewardLeft.Sign() < 0 {
		return payout{
			Reward:  singleDeposit,
			Bailout: totalRewardLeft.Neg(),
		}
	}
	// totalBuffer >= -available > 0 here, so the division is safe.
	reward := money.BigValue(new(big.Int).Quo(
		new(big.Int).Mul(singleDeposit.BigInt(), totalRewardLeft.BigInt()),
		totalBuffer.BigInt(),
	))
	return payout{
		Reward:    reward,
		Patrician: isPatrician(available, totalBuffer, conf),
	}
}

// isPatrician reports whether the sender is still inside the early
// critical window. The ratio compares the time until the deposits are
// fully depleted against the non-patrician window length; a sender whose
// runway exceeds that window was caught early.
//
// A zero total deposit can never be patrician. A depletion rate that
// truncates to zero would divide by zero and is treated as pleb as well.
func isPatrician(available, totalDeposit money.Value, conf Configuration) bool {
	if totalDeposit.Sign() <= 0 {
		return false
	}
	depletion := new(big.Int).Quo(totalDeposit.BigInt(), big.NewInt(int64(conf.LiquidationPeriod)))
	if depletion.Sign() == 0 {
		return false
	}
	runway := new(big.Int).Quo(available.Add(totalDeposit).BigInt(), depletion)
	window := big.NewInt(int64(conf.LiquidationPeriod - conf.PatricianPeriod))
	return runway.Cmp(window) > 0
}
