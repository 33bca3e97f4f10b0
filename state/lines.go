package state

import (
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/util"
	"github.com/tradelayer/tradelayerd/util/lines"
)

// Lines renders a human-readable summary of the state, one table per section
func (s *Store) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	ret.Add("height: %d", s.height).
		Add("consensus hash: %s", s.HashHex()).
		Add("properties: %d, next id: %d", len(s.properties), s.nextPropertyID)
	for _, id := range util.SortKeys(s.properties, func(id1, id2 ledger.PropertyID) bool { return id1 < id2 }) {
		p := s.properties[id]
		ret.Add("   #%d '%s' issuer: %s, total: %s, in circulation: %s",
			p.ID, p.Name, p.Issuer, p.Total.String(), s.TotalInCirculation(p.ID).String())
	}
	ret.Add("balance entries: %d", len(s.balances)).
		Add("attestations: %d", len(s.attestations)).
		Add("open offers: %d", len(s.offers)).
		Add("channels: %d", len(s.channels)).
		Add("vested: %s%%, last vesting block: %d",
			ledger.VestedPercentAmount(s.vestedNumerator).String(), s.lastVestingBlock).
		Add("cumulative volume: %s", s.TotalVolume().String())
	return ret
}
