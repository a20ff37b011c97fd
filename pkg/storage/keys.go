package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// keys: o:<8-byte-id> orders, w:<8-byte-id> owners, t:<20-byte-token>
// obligations, n: the order id high-water mark
func orderKey(id uint64) []byte  { return append([]byte("o:"), idKey(id)...) }
func ownerKey(id uint64) []byte  { return append([]byte("w:"), idKey(id)...) }
func obligationKey(token common.Address) []byte { return append([]byte("t:"), token.Bytes()...) }

var nextIDKey = []byte("n:")

func idKey(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, for pebble range iteration.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
