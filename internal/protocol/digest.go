package protocol

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// Digest returns a murmur3-64 fingerprint of an ordered event list.
//
// Two lists share a digest only if they hold the same events in the same
// order, so comparing digests across nodes checks the ordering invariant
// without shipping the lists around.
func Digest(events []domain.Event) uint64 {
	h := murmur3.New64()
	var n [4]byte
	for _, e := range events {
		b, err := marshalOpts.Marshal(encodeEvent(e))
		if err != nil {
			// structpb values built by domain.Event always marshal.
			continue
		}
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(b)
	}
	return h.Sum64()
}
