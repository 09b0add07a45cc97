package engine

import (
	"go.uber.org/zap"

	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/money"
)

// PoolCreated is emitted once per pool, on creation.
type PoolCreated struct {
	Pool  flowdist.Address
	Admin flowdist.Address
}

// MembershipChanged is emitted on connect, disconnect and unit updates.
// Idempotent connects and disconnects still emit, with unchanged content.
type MembershipChanged struct {
	Pool      flowdist.Address
	Member    flowdist.Address
	Connected bool
	Units     money.Unit
}

// FlowUpdated is emitted after every flow distribution change, carrying
// the old and requested rates, the aggregate rate actually distributed
// over units and the remainder routed to the adjustment recipient.
type FlowUpdated struct {
	From                flowdist.Address
	Pool                flowdist.Address
	OldRate             money.FlowRate
	NewRate             money.FlowRate
	Distributed         money.FlowRate
	Adjustment          money.FlowRate
	AdjustmentRecipient flowdist.Address
	Buffer              money.Value
}

// Distributed is emitted after an instantaneous distribution.
type Distributed struct {
	From      flowdist.Address
	Pool      flowdist.Address
	Requested money.Value
	Actual    money.Value
}

// Claimed is emitted when a member pulls accrued value out of a pool.
type Claimed struct {
	Pool   flowdist.Address
	Member flowdist.Address
	Amount money.Value
}

// Liquidated is emitted when a third party closes a critical sender's
// flow. Bailout is zero unless the sender's deposits no longer cover the
// deficit and the shortfall was socialized via the reward account.
type Liquidated struct {
	Sender     flowdist.Address
	Liquidator flowdist.Address
	Pool       flowdist.Address
	Reward     money.Value
	Bailout    money.Value
	Patrician  bool
}

// Emitter receives operation results after they were committed. Emission
// is best effort and must never influence the accounting outcome.
type Emitter interface {
	PoolCreated(PoolCreated)
	MembershipChanged(MembershipChanged)
	FlowUpdated(FlowUpdated)
	Distributed(Distributed)
	Claimed(Claimed)
	Liquidated(Liquidated)
}

// NopEmitter drops all emissions.
type NopEmitter struct{}

func (NopEmitter) PoolCreated(PoolCreated)             {}
func (NopEmitter) MembershipChanged(MembershipChanged) {}
func (NopEmitter) FlowUpdated(FlowUpdated)             {}
func (NopEmitter) Distributed(Distributed)             {}
func (NopEmitter) Claimed(Claimed)                     {}
func (NopEmitter) Liquidated(Liquidated)               {}

// LogEmitter writes every emission as a structured log entry.
type LogEmitter struct {
	log *zap.Logger
}

// NewLogEmitter returns an emitter logging through the given logger.
func NewLogEmitter(log *zap.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) PoolCreated(ev PoolCreated) {
	e.log.Info("pool created",
		zap.String("pool", ev.Pool.String()),
		zap.String("admin", ev.Admin.String()),
	)
}

func (e *LogEmitter) MembershipChanged(ev MembershipChanged) {
	e.log.Info("membership changed",
		zap.String("pool", ev.Pool.String()),
		zap.String("member", ev.Member.String()),
		zap.Bool("connected", ev.Connected),
		zap.Int64("units", int64(ev.Units)),
	)
}

func (e *LogEmitter) FlowUpdated(ev FlowUpdated) {
	e.log.Info("flow updated",
		zap.String("from", ev.From.String()),
		zap.String("pool", ev.Pool.String()),
		zap.String("oldRate", ev.OldRate.String()),
		zap.String("newRate", ev.NewRate.String()),
		zap.String("distributed", ev.Distributed.String()),
		zap.String("adjustment", ev.Adjustment.String()),
		zap.String("adjustmentRecipient", ev.AdjustmentRecipient.String()),
		zap.String("buffer", ev.Buffer.String()),
	)
}

func (e *LogEmitter) Distributed(ev Distributed) {
	e.log.Info("distributed",
		zap.String("from", ev.From.String()),
		zap.String("pool", ev.Pool.String()),
		zap.String("requested", ev.Requested.String()),
		zap.String("actual", ev.Actual.String()),
	)
}

func (e *LogEmitter) Claimed(ev Claimed) {
	e.log.Info("claimed",
		zap.String("pool", ev.Pool.String()),
		zap.String("member", ev.Member.String()),
		zap.String("amount", ev.Amount.String()),
	)
}

func (e *LogEmitter) Liquidated(ev Liquidated) {
	e.log.Info("liquidated",
		zap.String("sender", ev.Sender.String()),
		zap.String("liquidator", ev.Liquidator.String()),
		zap.String("pool", ev.Pool.String()),
		zap.String("reward", ev.Reward.String()),
		zap.String("bailout", ev.Bailout.String()),
		zap.Bool("patrician", ev.Patrician),
	)
}
