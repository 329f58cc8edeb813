package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/catalog/dsl"
	"github.com/chazu/trellis/pkg/frame"
	"github.com/chazu/trellis/pkg/grow"
	"github.com/chazu/trellis/pkg/kernel/sdfx"
	"github.com/chazu/trellis/pkg/tessellate"
	"github.com/chazu/trellis/pkg/world"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var growFlags struct {
	catalog string
	config  string
	root    string
	steps   int
	seed    int64
	jitter  float64
	resume  string
	out     string
	mesh    bool
	watch   bool
}

var cmdGrow = &cobra.Command{
	Use:   "grow",
	Short: "grow an aggregation",
	Long: "places a root part and grows the aggregation with random spawns; " +
		"with --watch, rules are reloaded whenever the catalog changes and another round is grown",
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := growFlags
		cfg, log, err := loadConfig(f.config)
		if err != nil {
			return err
		}
		c, err := loadCatalog(cmd, f.catalog)
		if err != nil {
			return err
		}
		w, err := world.New(cfg, c, sdfx.New(), log)
		if err != nil {
			return err
		}
		if err := seedWorld(w, c, f.root, f.resume); err != nil {
			return err
		}

		g := grow.New(w, f.seed, log)
		g.Jitter = f.jitter
		if err := growRound(w, g, log); err != nil {
			return err
		}
		if f.watch {
			if err := watchAndGrow(cmd.Context(), w, g, log); err != nil {
				return err
			}
		}
		return report(cmd, w)
	},
}

func init() {
	fl := cmdGrow.Flags()
	fl.StringVar(&growFlags.catalog, "catalog", "", "catalog file")
	fl.StringVar(&growFlags.config, "config", "", "config file (.toml, .yaml)")
	fl.StringVar(&growFlags.root, "root", "", "template of the root part (default: first in catalog)")
	fl.IntVar(&growFlags.steps, "steps", 100, "spawn attempts per round")
	fl.Int64Var(&growFlags.seed, "seed", 1, "random seed")
	fl.Float64Var(&growFlags.jitter, "jitter", 0, "random offset applied to each candidate pose")
	fl.StringVar(&growFlags.resume, "resume", "", "snapshot to continue from instead of a new root")
	fl.StringVar(&growFlags.out, "out", "", "write the final snapshot here")
	fl.BoolVar(&growFlags.mesh, "mesh", false, "tessellate the result and print mesh statistics")
	fl.BoolVar(&growFlags.watch, "watch", false, "keep growing on catalog changes until interrupted")
	_ = cmdGrow.MarkFlagRequired("catalog")
}

// seedWorld restores the snapshot at resume, or places a root part.
func seedWorld(w *world.World, c *catalog.Catalog, root, resume string) error {
	if resume != "" {
		b, err := os.ReadFile(resume)
		if err != nil {
			return err
		}
		s, err := world.DecodeSnapshot(b)
		if err != nil {
			return err
		}
		return w.Restore(s)
	}
	if root == "" {
		root = c.Templates[0].Name
	}
	_, err := w.Spawn(world.Root(root, frame.Identity()))
	return err
}

func growRound(w *world.World, g *grow.Grower, log logrus.FieldLogger) error {
	added, err := g.Run(growFlags.steps)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"added": added, "parts": len(w.PlacedParts())}).Info("round complete")
	return nil
}

// watchAndGrow reloads rules from the catalog file on every change and
// grows another round. The world is only touched from this goroutine.
func watchAndGrow(ctx context.Context, w *world.World, g *grow.Grower, log logrus.FieldLogger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reloads := make(chan *catalog.Catalog)
	errc := make(chan error, 1)
	go func() {
		errc <- dsl.Watch(ctx, growFlags.catalog, func(c *catalog.Catalog, evalErrs []dsl.EvalError, err error) {
			switch {
			case err != nil:
				log.WithError(err).Warn("catalog reload failed")
			case len(evalErrs) > 0:
				log.WithField("errors", len(evalErrs)).Warnf("catalog reload: %s", evalErrs[0])
			default:
				select {
				case reloads <- c:
				case <-ctx.Done():
				}
			}
		})
	}()

	log.WithField("catalog", growFlags.catalog).Info("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return <-errc
		case err := <-errc:
			return err
		case c := <-reloads:
			if err := w.ReloadRules(c.Rules); err != nil {
				log.WithError(err).Warn("rules not applied")
				continue
			}
			if err := growRound(w, g, log); err != nil {
				return err
			}
		}
	}
}

func report(cmd *cobra.Command, w *world.World) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "placed %d parts, %d open connections\n", len(w.PlacedParts()), len(w.OpenConnections()))

	if growFlags.mesh {
		meshes, err := tessellate.Tessellate(w)
		if err != nil {
			return err
		}
		tris := 0
		for _, m := range meshes {
			tris += m.TriangleCount()
		}
		fmt.Fprintf(out, "meshed %d parts, %d triangles\n", len(meshes), tris)
	}

	if growFlags.out != "" {
		b, err := world.EncodeSnapshot(w.Snapshot())
		if err != nil {
			return err
		}
		if err := os.WriteFile(growFlags.out, b, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "snapshot written to %s\n", growFlags.out)
	}
	return nil
}
