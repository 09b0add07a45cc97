package engine

import (
	"encoding/binary"
	"math/big"

	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/gconf"
	"github.com/flowdist/flowdist/money"
)

// Configuration holds the governance parameters of the engine.
//
// LiquidationPeriod is the span of outflow, in time ticks, a flow's
// buffer must cover. PatricianPeriod is the early critical window during
// which liquidation rewards favor the privileged liquidator class.
type Configuration struct {
	LiquidationPeriod uint32
	PatricianPeriod   uint32
	MinimumDeposit    money.Value
}

const confSize = 4 + 4 + 32

// Validate rejects degenerate parameter sets. A zero liquidation period
// would make the patrician ratio divide by zero and a patrician period
// not strictly inside the liquidation period degenerates the comparison,
// so both are refused at the configuration boundary.
func (c Configuration) Validate() error {
	if c.LiquidationPeriod == 0 {
		return errors.Wrap(errors.ErrInput, "zero liquidation period")
	}
	if c.PatricianPeriod >= c.LiquidationPeriod {
		return errors.Wrapf(errors.ErrInput,
			"patrician period %d must be below liquidation period %d",
			c.PatricianPeriod, c.LiquidationPeriod)
	}
	if c.MinimumDeposit.Sign() < 0 {
		return errors.Wrap(errors.ErrInput, "negative minimum deposit")
	}
	return nil
}

// Marshal packs the configuration:
//
//	liquidationPeriod(4B) | patricianPeriod(4B) | minimumDeposit(32B)
func (c Configuration) Marshal() ([]byte, error) {
	raw := make([]byte, confSize)
	binary.BigEndian.PutUint32(raw[0:4], c.LiquidationPeriod)
	binary.BigEndian.PutUint32(raw[4:8], c.PatricianPeriod)
	d := c.MinimumDeposit.BigInt()
	if d.Sign() < 0 || d.BitLen() > 255 {
		return nil, errors.Wrapf(errors.ErrOverflow, "minimum deposit %s", d)
	}
	d.FillBytes(raw[8:])
	return raw, nil
}

// Unmarshal unpacks the configuration.
func (c *Configuration) Unmarshal(raw []byte) error {
	if len(raw) != confSize {
		return errors.Wrapf(errors.ErrCorruption, "configuration size %d", len(raw))
	}
	c.LiquidationPeriod = binary.BigEndian.Uint32(raw[0:4])
	c.PatricianPeriod = binary.BigEndian.Uint32(raw[4:8])
	c.MinimumDeposit = money.BigValue(new(big.Int).SetBytes(raw[8:]))
	return nil
}

// SaveConf stores the engine configuration singleton.
func SaveConf(db gconf.Store, c Configuration) error {
	return gconf.Save(db, "engine", c)
}

func loadConf(db gconf.ReadStore) (Configuration, error) {
	var c Configuration
	if err := gconf.Load(db, "engine", &c); err != nil {
		return c, errors.Wrap(err, "configuration")
	}
	return c, nil
}
