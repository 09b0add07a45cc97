package pool

import (
	"encoding/binary"

	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
)

var (
	poolPrefix   = []byte("pl:")
	memberPrefix = []byte("pm:")
	seqKey       = []byte("ps:id")
)

// Bucket manages pool and member records. Pools live under their derived
// address, members under the pool address plus their own.
type Bucket struct{}

// NewBucket returns a bucket for managing pool state.
func NewBucket() Bucket {
	return Bucket{}
}

func (Bucket) poolKey(pool flowdist.Address) []byte {
	return append(append([]byte{}, poolPrefix...), pool...)
}

func (Bucket) memberKey(pool, member flowdist.Address) []byte {
	k := append(append([]byte{}, memberPrefix...), pool...)
	return append(k, member...)
}

// NextID claims the next pool sequence number. The increment shares the
// caller's transaction, so a rolled back creation releases the number.
func (Bucket) NextID(db flowdist.KVStore) (uint32, error) {
	raw, err := db.Get(seqKey)
	if err != nil {
		return 0, errors.Wrap(err, "pool sequence")
	}
	var next uint32 = 1
	if raw != nil {
		next = binary.BigEndian.Uint32(raw) + 1
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, next)
	if err := db.Set(seqKey, buf); err != nil {
		return 0, errors.Wrap(err, "pool sequence")
	}
	return next, nil
}

// PoolAccount derives the deterministic address of the pool with the given
// sequence number.
func PoolAccount(id uint32) flowdist.Address {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, id)
	return flowdist.NewCondition("flowdist", "pool", key).Address()
}

// Get loads a pool. The second return value is false for an unknown pool.
func (b Bucket) Get(db flowdist.ReadOnlyKVStore, pool flowdist.Address) (Pool, bool, error) {
	var p Pool
	raw, err := db.Get(b.poolKey(pool))
	if err != nil {
		return p, false, errors.Wrap(err, "pool")
	}
	if raw == nil {
		return p, false, nil
	}
	if err := p.Unmarshal(raw); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// Save validates and persists a pool.
func (b Bucket) Save(db flowdist.KVStore, pool flowdist.Address, p Pool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	raw, err := p.Marshal()
	if err != nil {
		return err
	}
	return db.Set(b.poolKey(pool), raw)
}

// GetMember loads the member record of an account within a pool. A missing
// record reads as the zero member, which is a valid never-joined state.
func (b Bucket) GetMember(db flowdist.ReadOnlyKVStore, pool, member flowdist.Address) (Member, error) {
	var m Member
	raw, err := db.Get(b.memberKey(pool, member))
	if err != nil {
		return m, errors.Wrap(err, "pool member")
	}
	if raw == nil {
		return m, nil
	}
	if err := m.Unmarshal(raw); err != nil {
		return m, err
	}
	return m, nil
}

// SaveMember persists the member record of an account within a pool.
func (b Bucket) SaveMember(db flowdist.KVStore, pool, member flowdist.Address, m Member) error {
	if m.OwnedUnits < 0 {
		return errors.Wrapf(errors.ErrState, "negative owned units: %d", m.OwnedUnits)
	}
	raw, err := m.Marshal()
	if err != nil {
		return err
	}
	return db.Set(b.memberKey(pool, member), raw)
}
