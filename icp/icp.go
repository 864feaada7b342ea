// Package icp implements point-to-point Iterative Closest Point
// registration: given a reference ("map") cloud and an input cloud already
// expressed in the reference's frame, it searches for the rigid correction
// that best aligns the input onto the reference.
//
// Concurrency is the caller's responsibility: the mapper serializes calls
// to SetMap and Operator itself (its icpMapLock) because the two operate on
// logically the same reference cloud from different goroutines. ICP itself
// holds no lock.
package icp

import (
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/brunokinder/norlab-icp-mapper/knn"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// Config holds the tunable parameters of the point-to-point registration
// loop, the Go-native equivalent of libpointmatcher's ICP YAML
// configuration (read filter chains, error minimizer, outlier filter,
// transformation checker).
type Config struct {
	MaxIterations         int     `yaml:"maxIterations"`
	ConvergenceTranslation float64 `yaml:"convergenceTranslation"`
	ConvergenceRotation    float64 `yaml:"convergenceRotation"`
	MaxCorrespondenceDist  float64 `yaml:"maxCorrespondenceDist"`
}

// DefaultConfig mirrors libpointmatcher's ICP::setDefault(): a generic,
// reasonably robust point-to-point configuration with no YAML file needed.
func DefaultConfig() Config {
	return Config{
		MaxIterations:          40,
		ConvergenceTranslation: 1e-4,
		ConvergenceRotation:    1e-5,
		MaxCorrespondenceDist:  1.0,
	}
}

// ICP is a stateful point-to-point registration operator. It owns a
// reference cloud (set via SetMap) that successive calls to Operator align
// against, and remembers the overlap of its most recent registration.
type ICP struct {
	dim         int
	config      Config
	reference   *pointcloud.PointCloud
	referenceKD *knn.Tree
	lastOverlap float64
}

// New returns an ICP operator for clouds of the given dimension, configured
// with DefaultConfig.
func New(dim int) *ICP {
	return &ICP{dim: dim, config: DefaultConfig()}
}

// SetDefault resets the operator to DefaultConfig, for callers that want
// library defaults rather than a YAML-loaded configuration.
func (icp *ICP) SetDefault() {
	icp.config = DefaultConfig()
}

// LoadFromYAML reads an ICP configuration from path. An empty path is a
// no-op (caller should use SetDefault in that case, matching
// Mapper.LoadYamlConfig's branch).
func (icp *ICP) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading ICP config %q", path)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "parsing ICP config %q", path)
	}
	icp.config = cfg
	return nil
}

// SetMap installs ref as the reference cloud that future Operator calls
// register against, rebuilding the nearest-neighbour index over it.
// Cropping the reference to sensorMaxRange is the caller's responsibility
// (mapper.mapStore.setMap), not this method's.
func (icp *ICP) SetMap(ref *pointcloud.PointCloud) {
	icp.reference = ref.Clone()
	if icp.reference.IsEmpty() {
		icp.referenceKD = nil
		return
	}
	icp.referenceKD = knn.New(euclideanCoords(icp.reference))
}

// Overlap returns the fraction of input points that found an acceptable
// correspondence in the reference cloud during the most recent Operator
// call.
func (icp *ICP) Overlap() float64 {
	return icp.lastOverlap
}

// Operator registers input against the previously-set reference cloud and
// returns the rigid correction that best aligns input onto it: applying
// the returned transform to input should make it overlap the reference.
func (icp *ICP) Operator(input *pointcloud.PointCloud) (transform.Rigid, error) {
	if icp.reference == nil || icp.reference.IsEmpty() {
		return transform.Rigid{}, errors.New("icp: no reference map set")
	}
	if input.Dim != icp.dim {
		return transform.Rigid{}, errors.Errorf("icp: input dimension %d does not match operator dimension %d", input.Dim, icp.dim)
	}

	correction := transform.Identity(icp.dim)
	current := input.Clone()
	maxIter := icp.config.MaxIterations
	if maxIter <= 0 {
		maxIter = 1
	}

	var lastMatchCount, totalCount int
	for iter := 0; iter < maxIter; iter++ {
		matchesSrc, matchesRef, matchCount, err := icp.correspondences(current)
		if err != nil {
			return transform.Rigid{}, err
		}
		totalCount = current.Size()
		lastMatchCount = matchCount
		if matchCount < icp.dim {
			break
		}

		step, err := kabsch(icp.dim, matchesSrc, matchesRef)
		if err != nil {
			return transform.Rigid{}, err
		}

		correction = step.Compose(correction)
		current, err = transform.Apply(step, current)
		if err != nil {
			return transform.Rigid{}, err
		}

		if converged(step, icp.dim, icp.config) {
			break
		}
	}

	if totalCount > 0 {
		icp.lastOverlap = float64(lastMatchCount) / float64(totalCount)
	} else {
		icp.lastOverlap = 0
	}
	return correction, nil
}

// correspondences finds, for every point in current, its nearest neighbour
// in the reference cloud within MaxCorrespondenceDist, returning the
// matched source/reference point pairs (as dim x k matrices suitable for
// kabsch) and how many points matched. When no point matches, both
// matrices are nil.
func (icp *ICP) correspondences(current *pointcloud.PointCloud) (src, ref *mat.Dense, count int, err error) {
	n := current.Size()
	srcCols := make([]float64, 0, icp.dim*n)
	refCols := make([]float64, 0, icp.dim*n)

	maxSq := icp.config.MaxCorrespondenceDist * icp.config.MaxCorrespondenceDist
	for i := 0; i < n; i++ {
		p := current.Point(i)
		query := []float64{p.X, p.Y}
		if icp.dim == 3 {
			query = []float64{p.X, p.Y, p.Z}
		}
		res := icp.referenceKD.NearestWithinRadius(query, maxSq)
		if !res.Found {
			continue
		}
		rp := icp.reference.Point(res.Index)
		srcCols = append(srcCols, p.X, p.Y)
		refCols = append(refCols, rp.X, rp.Y)
		if icp.dim == 3 {
			srcCols = append(srcCols, p.Z)
			refCols = append(refCols, rp.Z)
		}
		count++
	}
	if count == 0 {
		return nil, nil, 0, nil
	}
	src = denseFromColumnMajorPoints(icp.dim, count, srcCols)
	ref = denseFromColumnMajorPoints(icp.dim, count, refCols)
	return src, ref, count, nil
}

func denseFromColumnMajorPoints(dim, n int, flat []float64) *mat.Dense {
	d := mat.NewDense(dim, n, nil)
	for col := 0; col < n; col++ {
		for row := 0; row < dim; row++ {
			d.Set(row, col, flat[col*dim+row])
		}
	}
	return d
}

func euclideanCoords(pc *pointcloud.PointCloud) *mat.Dense {
	return mat.DenseCopyOf(pc.Features.Slice(0, pc.Dim, 0, pc.Size()))
}

func converged(step transform.Rigid, dim int, cfg Config) bool {
	translation := step.Translation()
	transNorm := 0.
	for _, v := range translation {
		transNorm += v * v
	}
	rotDeviation := 0.
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := 0.
			if i == j {
				want = 1
			}
			d := step.Matrix.At(i, j) - want
			rotDeviation += d * d
		}
	}
	return transNorm < cfg.ConvergenceTranslation*cfg.ConvergenceTranslation &&
		rotDeviation < cfg.ConvergenceRotation*cfg.ConvergenceRotation
}
