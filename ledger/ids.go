package ledger

import (
	"crypto/sha256"

	flowdist "github.com/flowdist/flowdist"
)

// RecordID identifies a keyed agreement record.
type RecordID []byte

// Domain tags keep the different record id families from ever colliding
// within the shared record keyspace.
const (
	flowDistributionTag = "distributionFlow"
	poolAdjustmentTag   = "poolAdjustmentFlow"
	poolMemberTag       = "poolMember"
)

func recordID(chainID, tag string, a, b flowdist.Address) RecordID {
	h := sha256.New()
	h.Write([]byte(chainID))
	h.Write([]byte{0})
	h.Write([]byte(tag))
	h.Write([]byte{0})
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}

// FlowDistributionID returns the id of the (sender, pool) distribution
// flow record.
func FlowDistributionID(chainID string, from, to flowdist.Address) RecordID {
	return recordID(chainID, flowDistributionTag, from, to)
}

// PoolAdjustmentID returns the id of the pool's adjustment flow record,
// carrying the rounding remainder from the pool to its admin.
func PoolAdjustmentID(chainID string, pool flowdist.Address) RecordID {
	return recordID(chainID, poolAdjustmentTag, pool, nil)
}

// PoolMemberID returns the id of the (member, pool) connection record.
func PoolMemberID(chainID string, member, pool flowdist.Address) RecordID {
	return recordID(chainID, poolMemberTag, member, pool)
}
