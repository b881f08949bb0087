// Package alignment refines provisional alignment spots collected across
// analytical files: duplicates are merged, global identifiers assigned and
// related spots linked into putative compound groups.
package alignment

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/logger"
	"github.com/ChrisMcGann/spotkey/pkg/metrics"
)

// ErrExported is returned when an exported spot is passed back for refinement.
var ErrExported = errors.New("spot already exported")

// Refiner runs the merge, identifier and linking passes. Calls on one
// Refiner are serialized.
type Refiner struct {
	mu     sync.Mutex
	params Parameters
}

// NewRefiner returns a refiner with the given parameters.
func NewRefiner(params Parameters) *Refiner {
	return &Refiner{params: params}
}

// Refine returns the accepted spots ordered by GlobalID, so that the spot
// with GlobalID i is at index i. The input spots are not modified.
func (r *Refiner) Refine(spots []*core.AlignmentSpot) ([]*core.AlignmentSpot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	provisional, err := intake(spots)
	if err != nil {
		return nil, err
	}

	accepted, err := r.merge(provisional)
	if err != nil {
		return nil, err
	}
	metrics.AlignmentSpots.WithLabelValues("provisional").Add(float64(len(provisional)))
	metrics.AlignmentSpots.WithLabelValues("accepted").Add(float64(len(accepted)))

	if err := assignGlobalIDs(accepted); err != nil {
		return nil, err
	}
	if err := r.link(accepted); err != nil {
		return nil, err
	}
	groups := assignGroups(accepted)

	logger.Info("alignment refined",
		"provisional", len(provisional),
		"accepted", len(accepted),
		"groups", groups)
	return accepted, nil
}

// intake copies the input into a fresh arena and resets every spot to the
// provisional stage. Identifiers and links are recomputed on every run.
func intake(spots []*core.AlignmentSpot) ([]*core.AlignmentSpot, error) {
	out := make([]*core.AlignmentSpot, 0, len(spots))
	for _, s := range spots {
		if s == nil {
			continue
		}
		if s.State == core.SpotExported {
			return nil, fmt.Errorf("%w: spot %d", ErrExported, s.ID)
		}
		c := s.Clone()
		c.State = core.SpotProvisional
		c.GlobalID = core.NoID
		c.GroupID = core.NoID
		c.RepresentativeID = core.NoID
		c.Links = nil
		c.Recenter()
		c.InheritAnnotation()
		out = append(out, c)
	}
	return out, nil
}

// assignGlobalIDs sorts by mass, then retention time, then source id, and
// numbers the spots in that order.
func assignGlobalIDs(spots []*core.AlignmentSpot) error {
	sort.SliceStable(spots, func(i, j int) bool {
		a, b := spots[i], spots[j]
		if a.MZ != b.MZ {
			return a.MZ < b.MZ
		}
		if a.RetentionTime != b.RetentionTime {
			return a.RetentionTime < b.RetentionTime
		}
		return a.ID < b.ID
	})
	for i, s := range spots {
		s.GlobalID = i
		if err := s.Advance(core.SpotIdentified); err != nil {
			return err
		}
	}
	return nil
}
