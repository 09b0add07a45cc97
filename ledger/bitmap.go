package ledger

import (
	flowdist "github.com/flowdist/flowdist"
	"github.com/flowdist/flowdist/errors"
)

// BitmapCapacity bounds the number of simultaneous pool connections per
// account: one occupancy word of 256 bits.
const BitmapCapacity = 256

var (
	bitmapPrefix = []byte("cb:")
	slotPrefix   = []byte("cs:")
)

// SlotValue is an occupied connection slot.
type SlotValue struct {
	Slot uint32
	Pool flowdist.Address
}

// ConnectionBitmap is the per-account index of pool connections: a fixed
// capacity occupancy bitmap plus a parallel slot value array. It answers
// "list all pools this account is connected to" in bounded time without
// any key scan.
type ConnectionBitmap struct{}

// NewConnectionBitmap returns the bitmap accessor.
func NewConnectionBitmap() ConnectionBitmap {
	return ConnectionBitmap{}
}

func (ConnectionBitmap) bitmapKey(account flowdist.Address) []byte {
	return append(append([]byte{}, bitmapPrefix...), account...)
}

func (ConnectionBitmap) slotKey(account flowdist.Address, slot uint32) []byte {
	key := append(append([]byte{}, slotPrefix...), account...)
	return append(key, byte(slot))
}

func (b ConnectionBitmap) load(db flowdist.ReadOnlyKVStore, account flowdist.Address) ([]byte, error) {
	raw, err := db.Get(b.bitmapKey(account))
	if err != nil {
		return nil, errors.Wrap(err, "connection bitmap")
	}
	if raw == nil {
		raw = make([]byte, BitmapCapacity/8)
	}
	if len(raw) != BitmapCapacity/8 {
		return nil, errors.Wrapf(errors.ErrCorruption, "connection bitmap size %d", len(raw))
	}
	return raw, nil
}

// FindAndFillSlot allocates the lowest free slot, marks it occupied and
// stores the pool address in it. Fails with a capacity error when all
// slots are taken.
func (b ConnectionBitmap) FindAndFillSlot(db flowdist.KVStore, account, pool flowdist.Address) (uint32, error) {
	raw, err := b.load(db, account)
	if err != nil {
		return 0, err
	}
	for i, word := range raw {
		if word == 0xff {
			continue
		}
		for bit := uint32(0); bit < 8; bit++ {
			if word&(1<<bit) != 0 {
				continue
			}
			slot := uint32(i)*8 + bit
			raw[i] |= 1 << bit
			if err := db.Set(b.bitmapKey(account), raw); err != nil {
				return 0, errors.Wrap(err, "occupy slot")
			}
			if err := db.Set(b.slotKey(account, slot), pool); err != nil {
				return 0, errors.Wrap(err, "fill slot")
			}
			return slot, nil
		}
	}
	return 0, errors.Wrapf(errors.ErrCapacity, "all %d connection slots occupied", BitmapCapacity)
}

// ClearSlot releases the slot and removes its value.
func (b ConnectionBitmap) ClearSlot(db flowdist.KVStore, account flowdist.Address, slot uint32) error {
	if slot >= BitmapCapacity {
		return errors.Wrapf(errors.ErrInput, "slot %d out of range", slot)
	}
	raw, err := b.load(db, account)
	if err != nil {
		return err
	}
	raw[slot/8] &^= 1 << (slot % 8)
	if err := db.Set(b.bitmapKey(account), raw); err != nil {
		return errors.Wrap(err, "release slot")
	}
	return db.Delete(b.slotKey(account, slot))
}

// ListOccupied enumerates all occupied slots in ascending slot order.
func (b ConnectionBitmap) ListOccupied(db flowdist.ReadOnlyKVStore, account flowdist.Address) ([]SlotValue, error) {
	raw, err := b.load(db, account)
	if err != nil {
		return nil, err
	}
	var occupied []SlotValue
	for i, word := range raw {
		if word == 0 {
			continue
		}
		for bit := uint32(0); bit < 8; bit++ {
			if word&(1<<bit) == 0 {
				continue
			}
			slot := uint32(i)*8 + bit
			pool, err := db.Get(b.slotKey(account, slot))
			if err != nil {
				return nil, errors.Wrap(err, "slot value")
			}
			if pool == nil {
				return nil, errors.Wrapf(errors.ErrCorruption, "occupied slot %d has no value", slot)
			}
			occupied = append(occupied, SlotValue{Slot: slot, Pool: flowdist.Address(pool)})
		}
	}
	return occupied, nil
}
