// Command mapperdemo wires a Mapper together with a synthetic stream of
// point clouds, demonstrating the registration/fusion loop end to end
// without any transport, persistence, or frame-lookup collaborator.
package main

import (
	"flag"
	"math"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"

	"github.com/brunokinder/norlab-icp-mapper/internal/logging"
	"github.com/brunokinder/norlab-icp-mapper/mapper"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

func main() {
	configPath := flag.String("config", "", "path to a mapper YAML config (defaults if empty)")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	sweeps := flag.Int("sweeps", 5, "number of synthetic sweeps to feed the mapper")
	flag.Parse()

	log := logging.NewConsole(*logLevel)
	defer func() { _ = log.Sync() }()

	cfg, err := mapper.LoadConfig(*configPath)
	if err != nil {
		log.Fatalw("loading config", "error", err)
	}

	m, err := mapper.NewMapper(cfg, log)
	if err != nil {
		log.Fatalw("constructing mapper", "error", err)
	}
	defer m.Close()

	dim := 2
	if cfg.Is3D {
		dim = 3
	}

	pose := transform.Identity(dim)
	for i := 0; i < *sweeps; i++ {
		cloud := syntheticSweep(dim, 200, float64(i)*0.1)
		if err := m.ProcessInput(cloud, pose, time.Now()); err != nil {
			log.Errorw("processing input", "sweep", i, "error", err)
			continue
		}
		log.Infow("sweep processed", "sweep", i, "mapSize", m.GetMap().Size(), "pose", m.SensorPose().Translation())
	}
}

// syntheticSweep returns a random point cloud roughly on the surface of a
// circle (2D) or sphere-ish band (3D) of radius ~5-6, centered near the
// origin and jittered by offset so consecutive sweeps are not bit-identical.
func syntheticSweep(dim, n int, offset float64) *pointcloud.PointCloud {
	pts := make([]r3.Vector, n)
	for i := range pts {
		theta := rand.Float64() * 2 * math.Pi
		radius := 5 + rand.Float64()
		z := 0.0
		if dim == 3 {
			z = (rand.Float64() - 0.5) * 2
		}
		pts[i] = r3.Vector{
			X: radius*math.Cos(theta) + offset,
			Y: radius*math.Sin(theta) + offset,
			Z: z,
		}
	}
	pc, err := pointcloud.NewFromPoints(dim, pts)
	if err != nil {
		panic(err)
	}
	return pc
}
