package config

import (
	"errors"
	"fmt"

	"github.com/chazu/trellis/pkg/voxel"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

type checkFunc func(c *Config) error

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	checks := []checkFunc{
		checkThreshold,
		checkAngle,
		checkSteps,
		checkRegion,
		checkCollision,
		checkLogLevel,
	}
	for _, check := range checks {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

func checkThreshold(c *Config) error {
	if !(c.ConnectionThreshold > 0) {
		return fmt.Errorf("%w: connection_threshold %v must be positive", ErrInvalid, c.ConnectionThreshold)
	}
	return nil
}

func checkAngle(c *Config) error {
	if !(c.AngleBase > 1) {
		return fmt.Errorf("%w: angle_base %v must exceed 1", ErrInvalid, c.AngleBase)
	}
	if c.AnglePenaltyScale < 0 {
		return fmt.Errorf("%w: angle_penalty_scale %v is negative", ErrInvalid, c.AnglePenaltyScale)
	}
	return nil
}

// The connection step must not drop below the threshold, or an item within
// threshold of a face could sit two cells away from a probe.
func checkSteps(c *Config) error {
	if c.ConnectionStepFactor < 1 {
		return fmt.Errorf("%w: connection_step_factor %v must be at least 1", ErrInvalid, c.ConnectionStepFactor)
	}
	if !(c.CollisionStepFactor > 0) {
		return fmt.Errorf("%w: collision_step_factor %v must be positive", ErrInvalid, c.CollisionStepFactor)
	}
	return nil
}

func checkRegion(c *Config) error {
	for i := 0; i < 3; i++ {
		if !(c.Region.Max[i] > c.Region.Min[i]) {
			return fmt.Errorf("%w: region axis %d is empty [%v, %v]", ErrInvalid, i, c.Region.Min[i], c.Region.Max[i])
		}
	}
	if n := voxel.CellsFor(c.ConnectionStep(), c.Region.MinVec(), c.Region.MaxVec()); !(n <= voxel.MaxCells) {
		return fmt.Errorf("%w: region needs %.0f connection cells at step %v, budget is %d",
			ErrInvalid, n, c.ConnectionStep(), voxel.MaxCells)
	}
	return nil
}

func checkCollision(c *Config) error {
	if c.CollisionTolerance < 0 {
		return fmt.Errorf("%w: collision_tolerance %v is negative", ErrInvalid, c.CollisionTolerance)
	}
	return nil
}

func checkLogLevel(c *Config) error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
