package world

import (
	"fmt"
	"math"

	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/part"
	"github.com/sirupsen/logrus"
)

// Outcome is the result of one scan of a free part.
type Outcome int

const (
	NotMatched Outcome = iota
	Matched
)

func (o Outcome) String() string {
	if o == Matched {
		return "matched"
	}
	return "not matched"
}

// match is the best pairing found for a free part.
type match struct {
	moving *part.Connection // on the free part
	target *part.Connection // on a placed part
	rule   int
	score  float64
}

// TryFindAndRealizeConnection scans free part id against the aggregation
// and, on a match, snaps it into place.
func (w *World) TryFindAndRealizeConnection(id part.ID) (Outcome, error) {
	p, err := w.Part(id)
	if err != nil {
		return NotMatched, err
	}
	if p.Frozen {
		return NotMatched, fmt.Errorf("%w: %s", ErrPartFrozen, p)
	}
	if !w.scanning {
		return NotMatched, nil
	}
	m, ok := w.search(p)
	if !ok || !w.realize(p, m) {
		return NotMatched, nil
	}
	return Matched, nil
}

// Tick scans every free part once and returns how many were placed. All
// searches complete before any realization mutates the indices; each
// realization re-checks that its target is still open.
func (w *World) Tick() int {
	if !w.scanning {
		return 0
	}
	type pending struct {
		p *part.Part
		m match
	}
	var found []pending
	for _, p := range w.FreeParts() {
		if m, ok := w.search(p); ok {
			found = append(found, pending{p, m})
		}
	}
	placed := 0
	for _, f := range found {
		if !w.conns.Contains(f.m.target) {
			w.log.WithFields(logrus.Fields{"part": f.p.ID, "conn": f.m.target.Key}).
				Debug("target taken earlier this tick")
			continue
		}
		if w.realize(f.p, f.m) {
			placed++
		}
	}
	return placed
}

// search finds the best open connection on a placed part for any open
// connection of p. Distance dominates the score, the angle between normals
// adds an exponential penalty and the twist between X axes a small one.
func (w *World) search(p *part.Part) (match, bool) {
	threshold := w.cfg.ConnectionThreshold
	best := threshold
	var m match
	found := false

	for _, c := range p.ActiveConnections() {
		cw, err := c.Frame.Resolve()
		if err != nil {
			w.log.WithField("conn", c.Key).Warn("moving connection detached")
			continue
		}
		for _, other := range w.conns.RevealAtCell(cw.Origin) {
			owner, ok := w.parts[other.Owner]
			if !ok || !owner.Frozen || owner.ID == p.ID {
				continue
			}
			if !owner.IsActive(other.Index) {
				w.log.WithFields(logrus.Fields{"part": owner.ID, "conn": other.Key}).
					Warn("closed connection still indexed")
				continue
			}
			if !w.rules.Matrix.Allowed(other.MatrixID, c.MatrixID) {
				continue
			}
			ow, err := other.Frame.Resolve()
			if err != nil {
				w.log.WithField("conn", other.Key).Warn("indexed connection detached")
				continue
			}

			score := cw.Origin.Sub(ow.Origin).Len()
			if score >= best || score > threshold {
				continue
			}
			angle := frame.AngleBetween(cw.Z, ow.Z, true)
			score += w.cfg.AnglePenaltyScale * math.Pow(w.cfg.AngleBase, angle-w.cfg.AngleOffset)
			if score >= best || score > threshold {
				continue
			}
			twist := frame.AngleBetween(cw.X, ow.X, false)
			score += twist * 10 * threshold / 1000 * threshold

			if score < best {
				if rule, ok := other.MatchesRule(c, w.rules.Rules); ok {
					best = score
					m = match{moving: c, target: other, rule: rule, score: score}
					found = true
				}
			}
			if found && best < threshold/5 {
				return m, true
			}
		}
	}
	return m, found
}

// realize aligns p onto m.target and places it. On failure p's pose is
// restored and nothing else changes.
func (w *World) realize(p *part.Part, m match) bool {
	owner, ok := w.parts[m.target.Owner]
	if !ok || !owner.IsActive(m.target.Index) {
		w.log.WithFields(logrus.Fields{"part": p.ID, "conn": m.target.Key}).Warn("match target no longer open")
		return false
	}
	log := w.log.WithFields(logrus.Fields{
		"part":  p.ID,
		"conn":  m.moving.Key,
		"onto":  fmt.Sprintf("%d/%s", owner.ID, m.target.Key),
		"score": m.score,
	})

	pre := p.Body.Transform()
	target := m.target.Frame.Clone()
	target.Flip()
	if !frame.Align(m.moving.Frame, target, p.Body) {
		p.Body.SetTransform(pre)
		log.Debug("alignment did not converge")
		return false
	}
	if hit, other := w.collides(p); hit {
		p.Body.SetTransform(pre)
		log.WithField("hit", other).Debug("placement overlaps a neighbour")
		return false
	}

	w.join(p, m.moving.Index, owner, m.target.Index)
	w.freeze(p)
	log.WithField("rule", m.rule).Debug("connection realized")
	return true
}
