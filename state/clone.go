package state

import (
	"github.com/tradelayer/tradelayerd/util"
)

// Clone returns an independent deep copy, taken through the canonical codec
// so that a clone is also a proof the serialization roundtrips
func (s *Store) Clone() *Store {
	ret, err := StoreFromBytes(s.Bytes())
	util.AssertNoError(err, "state clone")
	ret.setHash(s.hash)
	return ret
}
