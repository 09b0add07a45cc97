package money

import (
	"fmt"
	"math/big"
)

// Time is a monotonic 32-bit counter. Arithmetic is modular over the wrap
// boundary, matching a truncated blockchain style timestamp.
type Time uint32

// Since returns the number of ticks elapsed since the given earlier time.
// The subtraction is modular, so a wrapped counter still yields the
// correct elapsed span as long as the real distance fits 32 bits.
func (t Time) Since(earlier Time) uint32 {
	return uint32(t - earlier)
}

// Unit is a member share weight within a pool. Zero units means the member
// does not participate in distribution.
type Unit int64

// Value is a signed 256-bit monetary amount, the fundamental unit of
// money. The zero value is a valid zero amount. Values are immutable;
// every operation returns a new instance.
type Value struct {
	i *big.Int
}

// NewValue returns a value holding the given amount.
func NewValue(amount int64) Value {
	return Value{i: big.NewInt(amount)}
}

// BigValue returns a value holding a copy of the given amount.
func BigValue(amount *big.Int) Value {
	return Value{i: new(big.Int).Set(amount)}
}

var zeroInt = new(big.Int)

func (v Value) unwrap() *big.Int {
	if v.i == nil {
		return zeroInt
	}
	return v.i
}

// BigInt returns a copy of the amount as a big integer.
func (v Value) BigInt() *big.Int {
	return new(big.Int).Set(v.unwrap())
}

// Add returns v + o.
func (v Value) Add(o Value) Value {
	return Value{i: new(big.Int).Add(v.unwrap(), o.unwrap())}
}

// Sub returns v - o.
func (v Value) Sub(o Value) Value {
	return Value{i: new(big.Int).Sub(v.unwrap(), o.unwrap())}
}

// Neg returns -v.
func (v Value) Neg() Value {
	return Value{i: new(big.Int).Neg(v.unwrap())}
}

// MulUnit returns v scaled by a unit count.
func (v Value) MulUnit(u Unit) Value {
	return Value{i: new(big.Int).Mul(v.unwrap(), big.NewInt(int64(u)))}
}

// DivUnit returns v / u truncated toward zero. Calling with zero units is
// a programming error and panics; callers must guard the zero-unit case.
func (v Value) DivUnit(u Unit) Value {
	return Value{i: new(big.Int).Quo(v.unwrap(), big.NewInt(int64(u)))}
}

// Cmp compares two values, returning -1, 0 or 1.
func (v Value) Cmp(o Value) int {
	return v.unwrap().Cmp(o.unwrap())
}

// Equal returns true if both values hold the same amount.
func (v Value) Equal(o Value) bool {
	return v.Cmp(o) == 0
}

// Sign returns -1, 0 or 1 depending on the sign of the amount.
func (v Value) Sign() int {
	return v.unwrap().Sign()
}

// IsZero returns true for a zero amount.
func (v Value) IsZero() bool {
	return v.Sign() == 0
}

func (v Value) String() string {
	return v.unwrap().String()
}

// FlowRate is a signed fixed-point rate of value per unit of time. It is
// an independent domain from Value, related by multiplication with an
// elapsed time span. Immutable like Value.
type FlowRate struct {
	i *big.Int
}

// NewFlowRate returns a flow rate of the given value per time tick.
func NewFlowRate(rate int64) FlowRate {
	return FlowRate{i: big.NewInt(rate)}
}

// BigFlowRate returns a flow rate holding a copy of the given amount.
func BigFlowRate(rate *big.Int) FlowRate {
	return FlowRate{i: new(big.Int).Set(rate)}
}

func (r FlowRate) unwrap() *big.Int {
	if r.i == nil {
		return zeroInt
	}
	return r.i
}

// BigInt returns a copy of the rate as a big integer.
func (r FlowRate) BigInt() *big.Int {
	return new(big.Int).Set(r.unwrap())
}

// Add returns r + o.
func (r FlowRate) Add(o FlowRate) FlowRate {
	return FlowRate{i: new(big.Int).Add(r.unwrap(), o.unwrap())}
}

// Sub returns r - o.
func (r FlowRate) Sub(o FlowRate) FlowRate {
	return FlowRate{i: new(big.Int).Sub(r.unwrap(), o.unwrap())}
}

// Neg returns -r.
func (r FlowRate) Neg() FlowRate {
	return FlowRate{i: new(big.Int).Neg(r.unwrap())}
}

// MulTime projects the rate over an elapsed time span into a value.
func (r FlowRate) MulTime(elapsed uint32) Value {
	span := new(big.Int).SetUint64(uint64(elapsed))
	return Value{i: span.Mul(r.unwrap(), span)}
}

// MulUnit returns the rate scaled by a unit count.
func (r FlowRate) MulUnit(u Unit) FlowRate {
	return FlowRate{i: new(big.Int).Mul(r.unwrap(), big.NewInt(int64(u)))}
}

// DivUnit returns r / u truncated toward zero. Calling with zero units is
// a programming error and panics; callers must guard the zero-unit case.
func (r FlowRate) DivUnit(u Unit) FlowRate {
	return FlowRate{i: new(big.Int).Quo(r.unwrap(), big.NewInt(int64(u)))}
}

// Cmp compares two rates, returning -1, 0 or 1.
func (r FlowRate) Cmp(o FlowRate) int {
	return r.unwrap().Cmp(o.unwrap())
}

// Equal returns true if both rates are the same.
func (r FlowRate) Equal(o FlowRate) bool {
	return r.Cmp(o) == 0
}

// Sign returns -1, 0 or 1 depending on the sign of the rate.
func (r FlowRate) Sign() int {
	return r.unwrap().Sign()
}

// IsZero returns true for a zero rate.
func (r FlowRate) IsZero() bool {
	return r.Sign() == 0
}

func (r FlowRate) String() string {
	return fmt.Sprintf("%s/t", r.unwrap())
}
