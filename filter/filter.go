// Package filter implements the DataPointsFilter chains the mapper applies
// to input and map clouds: bounding-box culls in world frame, the
// sensor-range radius filter, and voxel-grid downsampling in the map-post
// chain. Chains are configured from YAML, mirroring libpointmatcher's
// DataPointsFilters(ifstream) constructor.
package filter

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
)

// DataPointsFilter transforms a point cloud, either producing a new cloud
// (Apply) or rewriting one in place (InPlaceFilter). The registration loop
// uses the in-place form for the sensor-frame radius filter and the
// sensor-frame input chain on its caller-owned buffer; everywhere else
// operates on owned snapshots via Apply.
type DataPointsFilter interface {
	Apply(pc *pointcloud.PointCloud) (*pointcloud.PointCloud, error)
	InPlaceFilter(pc *pointcloud.PointCloud) error
}

// Chain is an ordered sequence of filters applied in turn. An empty chain is
// a valid no-op.
type Chain struct {
	Filters []DataPointsFilter
}

// Apply runs every filter in order, threading the output of one into the
// input of the next.
func (c Chain) Apply(pc *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	cur := pc
	for _, f := range c.Filters {
		next, err := f.Apply(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// InPlaceFilter runs every filter in order, mutating pc through successive
// Apply calls and writing the final result back into pc.
func (c Chain) InPlaceFilter(pc *pointcloud.PointCloud) error {
	result, err := c.Apply(pc)
	if err != nil {
		return err
	}
	*pc = *result
	return nil
}

// filterConfig is the on-disk shape of one filter chain's YAML file: a
// list of named filters with free-form parameters, matching
// libpointmatcher's YAML filter-chain format.
type filterConfig struct {
	Filters []struct {
		Name   string                 `yaml:"name"`
		Params map[string]interface{} `yaml:"params"`
	} `yaml:"filters"`
}

// LoadChain reads a filter-chain YAML file at path and builds a Chain. An
// empty path returns an empty (no-op) chain.
func LoadChain(path string) (Chain, error) {
	if path == "" {
		return Chain{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Chain{}, errors.Wrapf(err, "reading filter config %q", path)
	}
	var cfg filterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Chain{}, errors.Wrapf(err, "parsing filter config %q", path)
	}

	chain := Chain{Filters: make([]DataPointsFilter, 0, len(cfg.Filters))}
	for _, fc := range cfg.Filters {
		f, err := build(fc.Name, fc.Params)
		if err != nil {
			return Chain{}, errors.Wrapf(err, "building filter %q", fc.Name)
		}
		chain.Filters = append(chain.Filters, f)
	}
	return chain, nil
}

func build(name string, params map[string]interface{}) (DataPointsFilter, error) {
	switch name {
	case "BoundingBoxDataPointsFilter":
		return newBoundingBoxFilter(params)
	case "DistanceLimitDataPointsFilter":
		return newRadiusFilter(params)
	case "VoxelGridDataPointsFilter":
		return newVoxelGridFilter(params)
	default:
		return nil, errors.Errorf("unknown filter %q", name)
	}
}

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func boolParam(params map[string]interface{}, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
