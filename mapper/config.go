package mapper

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every construction parameter of a Mapper: the three filter
// chain paths, the ICP configuration path, and the numeric/boolean
// parameters governing update policy and dynamic-probability tracking.
// Defaults are the ROS parameter defaults declared in the original mapper
// node, not invented values.
type Config struct {
	InputSensorFiltersConfig string `yaml:"inputSensorFiltersConfig"`
	InputWorldFiltersConfig  string `yaml:"inputWorldFiltersConfig"`
	MapPostFiltersConfig     string `yaml:"mapPostFiltersConfig"`
	IcpConfig                string `yaml:"icpConfig"`

	Is3D                bool `yaml:"is3D"`
	IsOnline             bool `yaml:"isOnline"`
	IsMapping            bool `yaml:"isMapping"`
	ComputeProbDynamic   bool `yaml:"computeProbDynamic"`

	MapUpdateCondition string  `yaml:"mapUpdateCondition"`
	MapUpdateOverlap   float64 `yaml:"mapUpdateOverlap"`
	MapUpdateDelay     float64 `yaml:"mapUpdateDelay"`
	MapUpdateDistance  float64 `yaml:"mapUpdateDistance"`

	MinDistNewPoint float64 `yaml:"minDistNewPoint"`
	SensorMaxRange  float64 `yaml:"sensorMaxRange"`

	PriorDynamic     float64 `yaml:"priorDynamic"`
	ThresholdDynamic float64 `yaml:"thresholdDynamic"`
	BeamHalfAngle    float64 `yaml:"beamHalfAngle"`
	EpsilonA         float64 `yaml:"epsilonA"`
	EpsilonD         float64 `yaml:"epsilonD"`
	Alpha            float64 `yaml:"alpha"`
	Beta             float64 `yaml:"beta"`
}

// epsilonProbability is the floor and ceiling kept clear of 0 and 1 for
// every probabilityDynamic value.
const epsilonProbability = 1e-4

// DefaultConfig returns the defaults declared in the original mapper node's
// ROS parameter table.
func DefaultConfig() Config {
	return Config{
		Is3D:               true,
		IsOnline:           true,
		IsMapping:          true,
		ComputeProbDynamic: false,

		MapUpdateCondition: "overlap",
		MapUpdateOverlap:   0.9,
		MapUpdateDelay:     1,
		MapUpdateDistance:  0.5,

		MinDistNewPoint: 0.03,
		SensorMaxRange:  80,

		PriorDynamic:     0.6,
		ThresholdDynamic: 0.9,
		BeamHalfAngle:    0.01,
		EpsilonA:         0.01,
		EpsilonD:         0.01,
		Alpha:            0.8,
		Beta:             0.99,
	}
}

// LoadConfig reads a Config from a YAML file, starting from DefaultConfig so
// an omitted field keeps its default rather than zeroing out.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading mapper config %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing mapper config %q", path)
	}
	return cfg, nil
}

// Validate reproduces the original mapper node's parameter validation
// ranges, returning a PreconditionViolated error naming the first offending
// field.
func (c Config) Validate() error {
	switch c.MapUpdateCondition {
	case "overlap", "delay", "distance":
	default:
		return newPreconditionViolated("mapUpdateCondition must be one of overlap, delay, distance, got %q", c.MapUpdateCondition)
	}
	if err := inRange("mapUpdateOverlap", c.MapUpdateOverlap, 0, 1); err != nil {
		return err
	}
	if c.MapUpdateDelay < 0 {
		return newPreconditionViolated("mapUpdateDelay must be >= 0, got %v", c.MapUpdateDelay)
	}
	if c.MapUpdateDistance < 0 {
		return newPreconditionViolated("mapUpdateDistance must be >= 0, got %v", c.MapUpdateDistance)
	}
	if c.MinDistNewPoint < 0 {
		return newPreconditionViolated("minDistNewPoint must be >= 0, got %v", c.MinDistNewPoint)
	}
	if c.SensorMaxRange < 0 {
		return newPreconditionViolated("sensorMaxRange must be >= 0, got %v", c.SensorMaxRange)
	}
	if err := inRange("priorDynamic", c.PriorDynamic, 0, 1); err != nil {
		return err
	}
	if err := inRange("thresholdDynamic", c.ThresholdDynamic, 0, 1); err != nil {
		return err
	}
	if err := inRange("alpha", c.Alpha, 0, 1); err != nil {
		return err
	}
	if err := inRange("beta", c.Beta, 0, 1); err != nil {
		return err
	}
	if err := inRange("beamHalfAngle", c.BeamHalfAngle, 0, math.Pi/2); err != nil {
		return err
	}
	if c.EpsilonA < 0 {
		return newPreconditionViolated("epsilonA must be >= 0, got %v", c.EpsilonA)
	}
	if c.EpsilonD < 0 {
		return newPreconditionViolated("epsilonD must be >= 0, got %v", c.EpsilonD)
	}
	return nil
}

func inRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return newPreconditionViolated("%s must be in [%v, %v], got %v", name, lo, hi, v)
	}
	return nil
}

// dim returns the Euclidean dimension implied by Is3D.
func (c Config) dim() int {
	if c.Is3D {
		return 3
	}
	return 2
}
