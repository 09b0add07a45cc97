package pool

import (
	"encoding/binary"
	"math/big"

	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/money"
)

// Internal packed layouts. Unlike the agreement records in the ledger
// package these are not part of any shared slot convention, but they use
// the same field widths so the same overflow discipline applies.

const (
	rateWidth  = 12
	valueWidth = 32
	unitWidth  = 8
	timeWidth  = 4

	poolRecordSize = flowdist.AddressLength + 2*unitWidth + 2*rateWidth + timeWidth + valueWidth
	memberSize     = 1 + unitWidth + valueWidth + rateWidth + timeWidth + valueWidth
)

func putRate(buf []byte, r money.FlowRate) error {
	return putSignedBits(buf, r.BigInt())
}

func putValue(buf []byte, v money.Value) error {
	return putSignedBits(buf, v.BigInt())
}

func putSignedBits(buf []byte, v *big.Int) error {
	bits := uint(len(buf)) * 8
	fits := false
	if v.Sign() >= 0 {
		fits = v.BitLen() <= int(bits)-1
	} else if v.BitLen() <= int(bits)-1 {
		fits = true
	} else {
		min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), bits-1))
		fits = v.Cmp(min) == 0
	}
	if !fits {
		return errors.Wrapf(errors.ErrOverflow, "%s does not fit %d bits signed", v, bits)
	}
	if v.Sign() < 0 {
		v = new(big.Int).Add(v, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	v.FillBytes(buf)
	return nil
}

func getSignedBits(buf []byte) *big.Int {
	bits := uint(len(buf)) * 8
	u := new(big.Int).SetBytes(buf)
	if u.Bit(int(bits)-1) == 1 {
		u.Sub(u, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return u
}

func putParticle(buf []byte, p money.BasicParticle) error {
	if err := putRate(buf[:rateWidth], p.FlowRate); err != nil {
		return errors.Wrap(err, "flow rate")
	}
	binary.BigEndian.PutUint32(buf[rateWidth:rateWidth+timeWidth], uint32(p.SettledAt))
	if err := putValue(buf[rateWidth+timeWidth:rateWidth+timeWidth+valueWidth], p.SettledValue); err != nil {
		return errors.Wrap(err, "settled value")
	}
	return nil
}

func getParticle(buf []byte) money.BasicParticle {
	return money.BasicParticle{
		FlowRate:     money.BigFlowRate(getSignedBits(buf[:rateWidth])),
		SettledAt:    money.Time(binary.BigEndian.Uint32(buf[rateWidth : rateWidth+timeWidth])),
		SettledValue: money.BigValue(getSignedBits(buf[rateWidth+timeWidth : rateWidth+timeWidth+valueWidth])),
	}
}

// Marshal packs the pool state:
//
//	admin(20B) | totalUnits(8B) | disconnectedUnits(8B) |
//	totalDistributionRate(12B) | wrappedParticle(12B|4B|32B)
func (p Pool) Marshal() ([]byte, error) {
	if len(p.Admin) != flowdist.AddressLength {
		return nil, errors.Wrapf(errors.ErrInput, "admin address length %d", len(p.Admin))
	}
	raw := make([]byte, poolRecordSize)
	off := copy(raw, p.Admin)
	binary.BigEndian.PutUint64(raw[off:off+unitWidth], uint64(p.Index.TotalUnits))
	off += unitWidth
	binary.BigEndian.PutUint64(raw[off:off+unitWidth], uint64(p.DisconnectedUnits))
	off += unitWidth
	if err := putRate(raw[off:off+rateWidth], p.TotalDistributionRate); err != nil {
		return nil, errors.Wrap(err, "total distribution rate")
	}
	off += rateWidth
	if err := putParticle(raw[off:], p.Index.WrappedParticle); err != nil {
		return nil, errors.Wrap(err, "wrapped particle")
	}
	return raw, nil
}

// Unmarshal unpacks the pool state.
func (p *Pool) Unmarshal(raw []byte) error {
	if len(raw) != poolRecordSize {
		return errors.Wrapf(errors.ErrCorruption, "pool record size %d", len(raw))
	}
	p.Admin = flowdist.Address(append([]byte{}, raw[:flowdist.AddressLength]...))
	off := flowdist.AddressLength
	p.Index.TotalUnits = money.Unit(binary.BigEndian.Uint64(raw[off : off+unitWidth]))
	off += unitWidth
	p.DisconnectedUnits = money.Unit(binary.BigEndian.Uint64(raw[off : off+unitWidth]))
	off += unitWidth
	p.TotalDistributionRate = money.BigFlowRate(getSignedBits(raw[off : off+rateWidth]))
	off += rateWidth
	p.Index.WrappedParticle = getParticle(raw[off:])
	return nil
}

// Marshal packs the member state:
//
//	flags(1B) | units(8B) | carry(32B) | syncedParticle(12B|4B|32B)
func (m Member) Marshal() ([]byte, error) {
	raw := make([]byte, memberSize)
	if m.Connected {
		raw[0] = 1
	}
	off := 1
	binary.BigEndian.PutUint64(raw[off:off+unitWidth], uint64(m.OwnedUnits))
	off += unitWidth
	if err := putValue(raw[off:off+valueWidth], m.SettledValue); err != nil {
		return nil, errors.Wrap(err, "carry")
	}
	off += valueWidth
	if err := putParticle(raw[off:], m.SyncedParticle); err != nil {
		return nil, errors.Wrap(err, "synced particle")
	}
	return raw, nil
}

// Unmarshal unpacks the member state.
func (m *Member) Unmarshal(raw []byte) error {
	if len(raw) != memberSize {
		return errors.Wrapf(errors.ErrCorruption, "member record size %d", len(raw))
	}
	m.Connected = raw[0]&1 != 0
	off := 1
	m.OwnedUnits = money.Unit(binary.BigEndian.Uint64(raw[off : off+unitWidth]))
	off += unitWidth
	m.SettledValue = money.BigValue(getSignedBits(raw[off : off+valueWidth]))
	off += valueWidth
	m.SyncedParticle = getParticle(raw[off:])
	return nil
}
