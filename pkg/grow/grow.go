// Package grow drives a World with random spawns: each step offers a new
// part to a random open connection of the aggregation and keeps it only
// when the regular connection scan accepts it.
package grow

import (
	"fmt"
	"math/rand"

	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/part"
	"github.com/chazu/trellis/pkg/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
)

// Grower adds parts to World one step at a time. Rand drives every random
// choice, so a seeded Grower over the same world grows the same aggregation.
type Grower struct {
	World *world.World
	Rand  *rand.Rand

	// Jitter is the half-width of the random offset added to each pose on
	// every axis. Zero places candidates exactly on their target.
	Jitter float64

	Log logrus.FieldLogger
}

// New returns a Grower seeded with seed.
func New(w *world.World, seed int64, log logrus.FieldLogger) *Grower {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Grower{
		World: w,
		Rand:  rand.New(rand.NewSource(seed)),
		Log:   log.WithField("component", "grow"),
	}
}

// Step attempts to add one part and reports whether it was placed. A
// candidate the scan rejects is deleted again.
func (g *Grower) Step() (bool, error) {
	open := g.World.OpenConnections()
	if len(open) == 0 {
		return false, nil
	}
	target := open[g.Rand.Intn(len(open))]

	candidates := g.World.RulesFrom(target.Key)
	if len(candidates) == 0 {
		return false, nil
	}
	rule := g.World.Rules()[candidates[g.Rand.Intn(len(candidates))]]

	tmpl, err := g.World.Template(rule.B.Part)
	if err != nil {
		return false, err
	}
	conn := tmpl.Connection(rule.B.ID)
	if conn == nil {
		return false, fmt.Errorf("grow: template %q has no connection %d", rule.B.Part, rule.B.ID)
	}

	log := g.logger().WithFields(logrus.Fields{"onto": target.Key, "with": rule.B})
	tr, ok := g.pose(conn, target)
	if !ok {
		log.Debug("could not pose candidate")
		return false, nil
	}

	id, err := g.World.Spawn(world.TokenPlain{Template: rule.B.Part, Transform: tr})
	if err != nil {
		return false, err
	}
	out, err := g.World.TryFindAndRealizeConnection(id)
	if err != nil {
		return false, err
	}
	if out == world.Matched {
		log.WithField("part", id).Debug("candidate placed")
		return true, nil
	}
	log.Debug("candidate rejected")
	return false, g.World.Delete(id)
}

// Run performs up to n steps and returns how many parts were added. It
// stops early once the aggregation has no open connection left.
func (g *Grower) Run(n int) (int, error) {
	added := 0
	for i := 0; i < n; i++ {
		if len(g.World.OpenConnections()) == 0 {
			break
		}
		ok, err := g.Step()
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	g.logger().WithFields(logrus.Fields{"steps": n, "added": added}).Info("growth finished")
	return added, nil
}

// pose computes the transform that lays template connection conn onto
// target, plus jitter.
func (g *Grower) pose(conn, target *part.Connection) (frame.Transform, bool) {
	body := frame.NewBody(frame.Identity())
	from := conn.Frame.Clone().Attach(body)
	to := target.Frame.Clone()
	to.Flip()
	if !frame.Align(from, to, body) {
		return frame.Transform{}, false
	}
	tr := body.Transform()
	if g.Jitter > 0 {
		tr.Position = tr.Position.Add(mgl64.Vec3{g.jitter(), g.jitter(), g.jitter()})
	}
	return tr, true
}

func (g *Grower) jitter() float64 {
	return (g.Rand.Float64()*2 - 1) * g.Jitter
}

func (g *Grower) logger() logrus.FieldLogger {
	if g.Log == nil {
		return logrus.StandardLogger()
	}
	return g.Log
}
