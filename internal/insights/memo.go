package insights

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/port"

	"golang.org/x/crypto/blake2b"
)

// Memo caches Aggregate results by snapshot fingerprint. Two snapshots with
// the same transactions in the same order share one result.
//
// Results are shared between callers and must be treated as read-only.
type Memo struct {
	cache port.Cache[*domain.Insights]
}

// NewMemo wraps cache.
func NewMemo(cache port.Cache[*domain.Insights]) *Memo {
	return &Memo{cache: cache}
}

// Aggregate returns the result for txns, computing it on a miss.
// The bool reports a cache hit.
func (m *Memo) Aggregate(txns []domain.Transaction, f LayoutFormatter) (*domain.Insights, bool) {
	key := Fingerprint(txns, f)
	if cached, ok := m.cache.Get(key); ok {
		return cached, true
	}
	result := Aggregate(txns, f)
	m.cache.Set(key, result)
	return result, false
}

// Fingerprint hashes everything Aggregate reads, in input order, plus the
// formatter's layout and location.
func Fingerprint(txns []domain.Transaction, f LayoutFormatter) string {
	h, _ := blake2b.New256(nil) // only fails for keys over 64 bytes
	writeField(h, f.key())

	var ts [8]byte
	for _, t := range txns {
		writeField(h, t.ID)
		writeField(h, t.Amount.String())
		binary.BigEndian.PutUint64(ts[:], uint64(t.PaidAt.UnixNano()))
		h.Write(ts[:])
		writeField(h, t.Category)
		if t.DestinationWalletID != nil {
			writeField(h, "->"+*t.DestinationWalletID)
		} else {
			writeField(h, "")
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes s length-prefixed so adjacent fields cannot collide.
func writeField(h hash.Hash, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
