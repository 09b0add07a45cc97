package ledger

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/money"
)

// UniversalIndexData is the per-account ledger record: the account's
// particle, its total buffer held in custody across all flows, and the
// is-pool tag.
//
// IsPool is set exactly once, at pool creation, and never cleared.
type UniversalIndexData struct {
	Particle    money.BasicParticle
	TotalBuffer money.Value
	IsPool      bool
}

const isPoolFlag = 1

// Marshal packs the record into two storage words:
//
//	word1 = flowRate(12B) | settledAt(4B) | totalBuffer(12B) | flags(4B)
//	word2 = settledValue(32B)
//
// Any field out of its packed range fails with an overflow error.
func (d UniversalIndexData) Marshal() ([]byte, error) {
	raw := make([]byte, 2*WordSize)

	off := 0
	if err := putSigned(raw[off:off+flowRateWidth], d.Particle.FlowRate.BigInt()); err != nil {
		return nil, errors.Wrap(err, "flow rate")
	}
	off += flowRateWidth
	putUint32(raw[off:off+timeWidth], uint32(d.Particle.SettledAt))
	off += timeWidth
	if err := putUnsigned(raw[off:off+bufferWidth], d.TotalBuffer.BigInt()); err != nil {
		return nil, errors.Wrap(err, "total buffer")
	}
	off += bufferWidth
	if d.IsPool {
		putUint32(raw[off:off+flagsWidth], isPoolFlag)
	}

	if err := putSigned(raw[WordSize:], d.Particle.SettledValue.BigInt()); err != nil {
		return nil, errors.Wrap(err, "settled value")
	}
	return raw, nil
}

// Unmarshal unpacks a two word record.
func (d *UniversalIndexData) Unmarshal(raw []byte) error {
	if len(raw) != 2*WordSize {
		return errors.Wrapf(errors.ErrCorruption, "universal index record size %d", len(raw))
	}
	off := 0
	d.Particle.FlowRate = money.BigFlowRate(getSigned(raw[off : off+flowRateWidth]))
	off += flowRateWidth
	d.Particle.SettledAt = money.Time(getUint32(raw[off : off+timeWidth]))
	off += timeWidth
	d.TotalBuffer = money.BigValue(getUnsigned(raw[off : off+bufferWidth]))
	off += bufferWidth
	d.IsPool = getUint32(raw[off:off+flagsWidth])&isPoolFlag != 0
	d.Particle.SettledValue = money.BigValue(getSigned(raw[WordSize:]))
	return nil
}

var universalIndexPrefix = []byte("ui:")

// UniversalIndexBucket stores one UniversalIndexData per account under the
// agreement's slot namespace.
type UniversalIndexBucket struct{}

// NewUniversalIndexBucket returns a bucket for managing universal index
// records.
func NewUniversalIndexBucket() UniversalIndexBucket {
	return UniversalIndexBucket{}
}

func (UniversalIndexBucket) key(account flowdist.Address) []byte {
	return append(append([]byte{}, universalIndexPrefix...), account...)
}

// Get loads the record of an account. The second return value is false if
// the account has no record; a genuinely zero-valued record is
// indistinguishable from a missing one, both behave identically.
func (b UniversalIndexBucket) Get(db flowdist.ReadOnlyKVStore, account flowdist.Address) (UniversalIndexData, bool, error) {
	var d UniversalIndexData
	raw, err := db.Get(b.key(account))
	if err != nil {
		return d, false, errors.Wrap(err, "universal index")
	}
	if raw == nil || allZero(raw) {
		return d, false, nil
	}
	if err := d.Unmarshal(raw); err != nil {
		return d, false, err
	}
	return d, true, nil
}

// Set persists the record of an account. The caller provides the full
// record; the current buffer and pool tag must be carried over by the
// caller when only the particle changed (use Update for that).
func (b UniversalIndexBucket) Set(db flowdist.KVStore, account flowdist.Address, d UniversalIndexData) error {
	raw, err := d.Marshal()
	if err != nil {
		return err
	}
	return db.Set(b.key(account), raw)
}

// UpdateParticle rewrites only the particle fields, round-tripping the
// stored buffer and pool tag so a particle update can never zero them.
func (b UniversalIndexBucket) UpdateParticle(db flowdist.KVStore, account flowdist.Address, p money.BasicParticle) error {
	d, _, err := b.Get(db, account)
	if err != nil {
		return err
	}
	d.Particle = p
	return b.Set(db, account, d)
}
