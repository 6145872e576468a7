package state

import (
	"encoding/binary"

	"github.com/govm-net/abihost/core"
)

// Key layout. Every key starts with a one byte prefix.
const (
	prefixStorage  = 's' // 's' + contract + key
	prefixBalance  = 'b' // 'b' + address
	prefixContract = 'c' // 'c' + contract
	prefixEvent    = 'e' // 'e' + contract + seq (big endian)
	prefixEventSeq = 'n' // 'n' + contract
	prefixHeight   = 'h'
	prefixNonce    = 'k' // 'k' + creator
)

func addrKey(prefix byte, addr core.Address, extra ...byte) []byte {
	key := make([]byte, 0, 1+core.AddressLength+len(extra))
	key = append(key, prefix)
	key = append(key, addr[:]...)
	return append(key, extra...)
}

// StorageKey returns the backend key of a storage cell.
func StorageKey(contract core.Address, key []byte) []byte {
	return addrKey(prefixStorage, contract, key...)
}

// StoragePrefix returns the prefix shared by every cell of a contract.
func StoragePrefix(contract core.Address) []byte {
	return addrKey(prefixStorage, contract)
}

func BalanceKey(addr core.Address) []byte {
	return addrKey(prefixBalance, addr)
}

func ContractKey(addr core.Address) []byte {
	return addrKey(prefixContract, addr)
}

func EventKey(contract core.Address, seq uint64) []byte {
	return addrKey(prefixEvent, contract, encodeUint64(seq)...)
}

func EventPrefix(contract core.Address) []byte {
	return addrKey(prefixEvent, contract)
}

func EventSeqKey(contract core.Address) []byte {
	return addrKey(prefixEventSeq, contract)
}

func HeightKey() []byte {
	return []byte{prefixHeight}
}

func NonceKey(creator core.Address) []byte {
	return addrKey(prefixNonce, creator)
}

// PrefixRange returns the start (inclusive) and end (exclusive) keys covering
// every key with the given prefix. A nil end means no upper bound.
func PrefixRange(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return nil, nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return prefix, end[:i+1]
		}
	}
	return prefix, nil
}

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
