package alignment

import (
	"math"
	"sort"

	"github.com/tidwall/btree"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
)

// Merge tiers, processed in this order.
const (
	tierCurated = iota
	tierFreeText
	tierUnconfirmed
	tierIsotope
)

func mergeTier(s *core.AlignmentSpot) int {
	switch {
	case s.IsIsotope():
		return tierIsotope
	case s.IsIdentified() && s.Reference.Source == core.SourceCurated:
		return tierCurated
	case s.IsIdentified() && s.Reference.Source == core.SourceFreeText:
		return tierFreeText
	}
	return tierUnconfirmed
}

// massItem indexes an accepted spot by consensus mass.
type massItem struct {
	MZ   float64
	Slot int
}

func massItemLess(a, b massItem) bool {
	if a.MZ != b.MZ {
		return a.MZ < b.MZ
	}
	return a.Slot < b.Slot
}

// merge accepts spots tier by tier. A spot within the mass window and half
// the retention tolerance of an already accepted spot is dropped, and its id
// is recorded on the first accepted such spot.
func (r *Refiner) merge(spots []*core.AlignmentSpot) ([]*core.AlignmentSpot, error) {
	order := make([]*core.AlignmentSpot, len(spots))
	copy(order, spots)
	sort.SliceStable(order, func(i, j int) bool {
		ti, tj := mergeTier(order[i]), mergeTier(order[j])
		if ti != tj {
			return ti < tj
		}
		return order[i].ID < order[j].ID
	})

	var (
		accepted []*core.AlignmentSpot
		index    = btree.NewBTreeG[massItem](massItemLess)
		done     = make(map[int]bool, len(order))
		rtHalf   = r.params.RtTolerance / 2
		dropped  int
	)
	for _, c := range order {
		if done[c.ID] {
			continue
		}
		done[c.ID] = true

		window := r.params.MzTolerance.Window(c.MZ)
		survivor := -1
		index.Ascend(massItem{MZ: c.MZ - window, Slot: -1}, func(item massItem) bool {
			if item.MZ > c.MZ+window {
				return false
			}
			a := accepted[item.Slot]
			if a.Polarity.Compatible(c.Polarity) &&
				math.Abs(a.RetentionTime-c.RetentionTime) <= rtHalf &&
				(survivor < 0 || item.Slot < survivor) {
				survivor = item.Slot
			}
			return true
		})

		if survivor >= 0 {
			s := accepted[survivor]
			s.MergedIDs = append(s.MergedIDs, c.ID)
			s.MergedIDs = append(s.MergedIDs, c.MergedIDs...)
			dropped++
			continue
		}

		if err := c.Advance(core.SpotAccepted); err != nil {
			return nil, err
		}
		index.Set(massItem{MZ: c.MZ, Slot: len(accepted)})
		accepted = append(accepted, c)
	}

	metrics.AlignmentSpots.WithLabelValues("merged").Add(float64(dropped))
	logger.Debug("merge pass finished", "accepted", len(accepted), "dropped", dropped)
	return accepted, nil
}
