package ledger

import (
	"math/big"

	"github.com/flowdist/flowdist/errors"
)

// WordSize is the size of a single storage word in bytes.
const WordSize = 32

// Packed field widths in bytes.
const (
	flowRateWidth = 12 // int96
	timeWidth     = 4  // uint32
	bufferWidth   = 12 // uint96
	flagsWidth    = 4
	valueWidth    = 32 // int256
)

// putSigned writes v into buf as a two's complement big-endian integer.
// Returns an overflow error if v does not fit the signed range of the
// buffer; the containing operation must be rejected, never wrapped.
func putSigned(buf []byte, v *big.Int) error {
	bits := uint(len(buf)) * 8
	if !fitsSigned(v, bits) {
		return errors.Wrapf(errors.ErrOverflow, "%s does not fit %d bits signed", v, bits)
	}
	u := new(big.Int).Set(v)
	if v.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	u.FillBytes(buf)
	return nil
}

// fitsSigned reports whether v is within [-2^(bits-1), 2^(bits-1)-1].
func fitsSigned(v *big.Int, bits uint) bool {
	if v.Sign() >= 0 {
		// BitLen ignores the sign, so the positive maximum has bits-1
		// significant bits.
		return v.BitLen() <= int(bits)-1
	}
	if v.BitLen() <= int(bits)-1 {
		return true
	}
	// The only wider negative value that still fits is exactly
	// -2^(bits-1).
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), bits-1))
	return v.Cmp(min) == 0
}

// getSigned reads a two's complement big-endian integer from buf.
func getSigned(buf []byte) *big.Int {
	bits := uint(len(buf)) * 8
	u := new(big.Int).SetBytes(buf)
	if u.Bit(int(bits)-1) == 1 {
		u.Sub(u, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return u
}

// putUnsigned writes v into buf as a big-endian unsigned integer. Returns
// an overflow error if v is negative or does not fit.
func putUnsigned(buf []byte, v *big.Int) error {
	bits := uint(len(buf)) * 8
	if v.Sign() < 0 {
		return errors.Wrapf(errors.ErrOverflow, "%s is negative", v)
	}
	if v.BitLen() > int(bits) {
		return errors.Wrapf(errors.ErrOverflow, "%s does not fit %d bits unsigned", v, bits)
	}
	v.FillBytes(buf)
	return nil
}

// getUnsigned reads a big-endian unsigned integer from buf.
func getUnsigned(buf []byte) *big.Int {
	return new(big.Int).SetBytes(buf)
}

func putUint32(buf []byte, v uint32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func getUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

// allZero reports whether the raw record is the semantic "does not exist"
// state.
func allZero(raw []byte) bool {
	for _, b := range raw {
		if b != 0 {
			return false
		}
	}
	return true
}
