// Package config holds the tunables of a trellis world: match tolerances,
// grid resolution, play region and logging. Values load from TOML or YAML
// files on top of Default.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Region is an axis-aligned play region in world units.
type Region struct {
	Min [3]float64 `toml:"min" yaml:"min"`
	Max [3]float64 `toml:"max" yaml:"max"`
}

// MinVec returns Min as a vector.
func (r Region) MinVec() mgl64.Vec3 { return mgl64.Vec3(r.Min) }

// MaxVec returns Max as a vector.
func (r Region) MaxVec() mgl64.Vec3 { return mgl64.Vec3(r.Max) }

// Config is the world configuration.
type Config struct {
	// ConnectionThreshold is the largest origin distance at which two
	// connections may join.
	ConnectionThreshold float64 `toml:"connection_threshold" yaml:"connection_threshold"`

	// Angular penalty: AnglePenaltyScale * AngleBase^(angle - AngleOffset).
	AngleBase         float64 `toml:"angle_base" yaml:"angle_base"`
	AngleOffset       float64 `toml:"angle_offset" yaml:"angle_offset"`
	AnglePenaltyScale float64 `toml:"angle_penalty_scale" yaml:"angle_penalty_scale"`

	// Cell sizes relative to the threshold and the largest template.
	ConnectionStepFactor float64 `toml:"connection_step_factor" yaml:"connection_step_factor"`
	CollisionStepFactor  float64 `toml:"collision_step_factor" yaml:"collision_step_factor"`

	Region Region `toml:"region" yaml:"region"`

	Scanning           bool    `toml:"scanning" yaml:"scanning"`
	CheckCollisions    bool    `toml:"check_collisions" yaml:"check_collisions"`
	CollisionTolerance float64 `toml:"collision_tolerance" yaml:"collision_tolerance"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		ConnectionThreshold:  0.1,
		AngleBase:            1.15,
		AngleOffset:          15,
		AnglePenaltyScale:    0.01,
		ConnectionStepFactor: 1.5,
		CollisionStepFactor:  1.2,
		Region: Region{
			Min: [3]float64{-10, -10, -10},
			Max: [3]float64{10, 10, 10},
		},
		Scanning:           true,
		CheckCollisions:    false,
		CollisionTolerance: 0.01,
		LogLevel:           "info",
	}
}

// ConnectionStep is the cell size of the connection index.
func (c Config) ConnectionStep() float64 {
	return c.ConnectionThreshold * c.ConnectionStepFactor
}

// CollisionStep is the cell size of the body index for templates whose
// largest bounding diagonal is maxDiagonal.
func (c Config) CollisionStep(maxDiagonal float64) float64 {
	return maxDiagonal * c.CollisionStepFactor
}

// Decoder is satisfied by the toml and yaml stream decoders.
type Decoder interface {
	Decode(v any) error
}

// DecoderFunc creates a Decoder reading from r.
type DecoderFunc func(r io.Reader) Decoder

// TOML and YAML are the decoders Load picks for the matching extensions.
var (
	TOML DecoderFunc = func(r io.Reader) Decoder { return toml.NewDecoder(r) }
	YAML DecoderFunc = func(r io.Reader) Decoder { return yaml.NewDecoder(r) }
)

var decoders = map[string]DecoderFunc{
	".toml": TOML,
	".yaml": YAML,
	".yml":  YAML,
}

// Load reads path over Default, picking the format from the extension,
// and validates the result.
func Load(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("config: unsupported format %q", ext)
	}
	fp, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer fp.Close()
	return Read(bufio.NewReader(fp), dec)
}

// Read decodes a configuration from r over Default and validates it.
func Read(r io.Reader, dec DecoderFunc) (Config, error) {
	cfg := Default()
	if err := dec(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
