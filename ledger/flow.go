package ledger

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
	"github.com/flowdist/flowdist/money"
)

// FlowDistributionData is the per (sender, pool) flow record. It is
// created on the first DistributeFlow call for the pair, updated on each
// subsequent call and value-zeroed, never physically removed, when the
// flow is closed.
type FlowDistributionData struct {
	LastUpdated money.Time
	FlowRate    money.FlowRate
	Buffer      money.Value
}

// Marshal packs the record into one storage word:
//
//	reserved(4B) | lastUpdated(4B) | flowRate(12B) | buffer(12B)
func (d FlowDistributionData) Marshal() ([]byte, error) {
	raw := make([]byte, WordSize)
	off := flagsWidth // reserved
	putUint32(raw[off:off+timeWidth], uint32(d.LastUpdated))
	off += timeWidth
	if err := putSigned(raw[off:off+flowRateWidth], d.FlowRate.BigInt()); err != nil {
		return nil, errors.Wrap(err, "flow rate")
	}
	off += flowRateWidth
	if err := putUnsigned(raw[off:off+bufferWidth], d.Buffer.BigInt()); err != nil {
		return nil, errors.Wrap(err, "buffer")
	}
	return raw, nil
}

// Unmarshal unpacks a one word record.
func (d *FlowDistributionData) Unmarshal(raw []byte) error {
	if len(raw) != WordSize {
		return errors.Wrapf(errors.ErrCorruption, "flow distribution record size %d", len(raw))
	}
	off := flagsWidth
	d.LastUpdated = money.Time(getUint32(raw[off : off+timeWidth]))
	off += timeWidth
	d.FlowRate = money.BigFlowRate(getSigned(raw[off : off+flowRateWidth]))
	off += flowRateWidth
	d.Buffer = money.BigValue(getUnsigned(raw[off : off+bufferWidth]))
	return nil
}

// PoolMemberData is the per (member, pool) connection record. PoolID is
// the slot index in the member's connection bitmap. The record is created
// on connect and zeroed, with its bitmap slot cleared, on disconnect.
type PoolMemberData struct {
	Pool   flowdist.Address
	PoolID uint32
}

// Marshal packs the record into one storage word:
//
//	reserved(8B) | poolID(4B) | pool(20B)
func (d PoolMemberData) Marshal() ([]byte, error) {
	if len(d.Pool) != flowdist.AddressLength {
		return nil, errors.Wrapf(errors.ErrInput, "pool address length %d", len(d.Pool))
	}
	raw := make([]byte, WordSize)
	putUint32(raw[8:12], d.PoolID)
	copy(raw[12:], d.Pool)
	return raw, nil
}

// Unmarshal unpacks a one word record.
func (d *PoolMemberData) Unmarshal(raw []byte) error {
	if len(raw) != WordSize {
		return errors.Wrapf(errors.ErrCorruption, "pool member record size %d", len(raw))
	}
	d.PoolID = getUint32(raw[8:12])
	d.Pool = flowdist.Address(append([]byte{}, raw[12:]...))
	return nil
}

var recordPrefix = []byte("r:")

// RecordBucket stores agreement records keyed by their domain-separated
// id: flow distribution records, pool member records and adjustment flow
// records.
type RecordBucket struct{}

// NewRecordBucket returns a bucket for managing keyed agreement records.
func NewRecordBucket() RecordBucket {
	return RecordBucket{}
}

func (RecordBucket) key(id RecordID) []byte {
	return append(append([]byte{}, recordPrefix...), id...)
}

// GetFlow loads a flow distribution record. A missing or zeroed record is
// returned as a zero record with false.
func (b RecordBucket) GetFlow(db flowdist.ReadOnlyKVStore, id RecordID) (FlowDistributionData, bool, error) {
	var d FlowDistributionData
	raw, err := db.Get(b.key(id))
	if err != nil {
		return d, false, errors.Wrap(err, "flow record")
	}
	if raw == nil || allZero(raw) {
		return d, false, nil
	}
	if err := d.Unmarshal(raw); err != nil {
		return d, false, err
	}
	return d, true, nil
}

// SetFlow persists a flow distribution record.
func (b RecordBucket) SetFlow(db flowdist.KVStore, id RecordID, d FlowDistributionData) error {
	raw, err := d.Marshal()
	if err != nil {
		return err
	}
	return db.Set(b.key(id), raw)
}

// GetPoolMember loads a pool member connection record.
func (b RecordBucket) GetPoolMember(db flowdist.ReadOnlyKVStore, id RecordID) (PoolMemberData, bool, error) {
	var d PoolMemberData
	raw, err := db.Get(b.key(id))
	if err != nil {
		return d, false, errors.Wrap(err, "pool member record")
	}
	if raw == nil || allZero(raw) {
		return d, false, nil
	}
	if err := d.Unmarshal(raw); err != nil {
		return d, false, err
	}
	return d, true, nil
}

// SetPoolMember persists a pool member connection record.
func (b RecordBucket) SetPoolMember(db flowdist.KVStore, id RecordID, d PoolMemberData) error {
	raw, err := d.Marshal()
	if err != nil {
		return err
	}
	return db.Set(b.key(id), raw)
}

// Terminate zeroes a record. The key remains occupied; an all-zero value
// is the semantic "does not exist" state.
func (b RecordBucket) Terminate(db flowdist.KVStore, id RecordID) error {
	return db.Set(b.key(id), make([]byte, WordSize))
}
