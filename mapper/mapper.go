// Package mapper implements the incremental point-cloud mapping core: the
// registration/fusion loop, the concurrent map-maintenance pipeline with
// at-most-one in-flight build, the dynamic-point Bayesian update, and the
// min-distance novelty filter.
package mapper

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/brunokinder/norlab-icp-mapper/filter"
	"github.com/brunokinder/norlab-icp-mapper/icp"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// Mapper is the public core: registration against a running map, policy-
// gated map maintenance, and (optionally) dynamic-point probability
// tracking. A Mapper is safe for concurrent use by one caller goroutine
// invoking ProcessInput/SetMap and any number of goroutines invoking the
// read-only accessors, matching the three-actor concurrency model
// (caller thread, builder worker, publisher threads).
type Mapper struct {
	cfg Config
	dim int

	inputSensorFilters filter.Chain
	inputWorldFilters  filter.Chain
	mapPostFilters      filter.Chain
	radiusFilter        filter.RadiusFilter

	icp   *icp.ICP
	store *mapStore

	builder  buildSlot
	hasBuilt atomic.Bool

	logger *zap.SugaredLogger
}

// NewMapper validates cfg, loads the three filter-chain files and the ICP
// configuration, and returns a Mapper with an empty map. logger may be nil,
// in which case a no-op logger is used.
func NewMapper(cfg Config, logger *zap.SugaredLogger) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	inputSensorFilters, err := filter.LoadChain(cfg.InputSensorFiltersConfig)
	if err != nil {
		return nil, collaboratorFailed("loading input-sensor filter chain", err)
	}
	inputWorldFilters, err := filter.LoadChain(cfg.InputWorldFiltersConfig)
	if err != nil {
		return nil, collaboratorFailed("loading input-world filter chain", err)
	}
	mapPostFilters, err := filter.LoadChain(cfg.MapPostFiltersConfig)
	if err != nil {
		return nil, collaboratorFailed("loading map-post filter chain", err)
	}

	dim := cfg.dim()
	icpOp := icp.New(dim)
	if cfg.IcpConfig != "" {
		if err := icpOp.LoadFromYAML(cfg.IcpConfig); err != nil {
			return nil, collaboratorFailed("loading ICP config", err)
		}
	} else {
		icpOp.SetDefault()
	}

	m := &Mapper{
		cfg:                 cfg,
		dim:                 dim,
		inputSensorFilters:  inputSensorFilters,
		inputWorldFilters:   inputWorldFilters,
		mapPostFilters:      mapPostFilters,
		radiusFilter:        filter.RadiusFilter{Dist: cfg.SensorMaxRange},
		icp:                 icpOp,
		store:               newMapStore(dim, icpOp),
		logger:              logger,
	}
	return m, nil
}

// LoadYamlConfig re-reads the three filter-chain configuration files and
// the ICP configuration from their configured paths. Reloading the ICP
// configuration replaces only its tuning parameters; the reference cloud
// already installed via SetMap is kept.
func (m *Mapper) LoadYamlConfig() error {
	inputSensorFilters, err := filter.LoadChain(m.cfg.InputSensorFiltersConfig)
	if err != nil {
		return collaboratorFailed("loading input-sensor filter chain", err)
	}
	inputWorldFilters, err := filter.LoadChain(m.cfg.InputWorldFiltersConfig)
	if err != nil {
		return collaboratorFailed("loading input-world filter chain", err)
	}
	mapPostFilters, err := filter.LoadChain(m.cfg.MapPostFiltersConfig)
	if err != nil {
		return collaboratorFailed("loading map-post filter chain", err)
	}
	err = m.store.withICPLock(func() error {
		if m.cfg.IcpConfig == "" {
			m.icp.SetDefault()
			return nil
		}
		return m.icp.LoadFromYAML(m.cfg.IcpConfig)
	})
	if err != nil {
		return collaboratorFailed("loading ICP config", err)
	}
	m.inputSensorFilters = inputSensorFilters
	m.inputWorldFilters = inputWorldFilters
	m.mapPostFilters = mapPostFilters
	return nil
}

// ProcessInput is the top-level registration loop. inputInSensorFrame
// may be rewritten in place by the sensor-frame filter chain; estimatedSensorPose
// is the odometry-based pose guess; timeStamp is a monotonic observation time.
func (m *Mapper) ProcessInput(inputInSensorFrame *pointcloud.PointCloud, estimatedSensorPose transform.Rigid, timeStamp time.Time) error {
	inputInMapFrame, err := transform.Apply(estimatedSensorPose, inputInSensorFrame)
	if err != nil {
		return collaboratorFailed("transforming input to map frame", err)
	}
	inputInMapFrame, err = m.inputWorldFilters.Apply(inputInMapFrame)
	if err != nil {
		return collaboratorFailed("applying world-frame input filters", err)
	}

	if err := m.radiusFilter.InPlaceFilter(inputInSensorFrame); err != nil {
		return collaboratorFailed("applying radius filter", err)
	}
	if err := m.inputSensorFilters.InPlaceFilter(inputInSensorFrame); err != nil {
		return collaboratorFailed("applying sensor-frame input filters", err)
	}

	if m.store.mapIsEmpty() {
		m.store.setSensorPose(estimatedSensorPose)
		return m.updateMap(inputInMapFrame, timeStamp)
	}

	var correction transform.Rigid
	err = m.store.withICPLock(func() error {
		c, icpErr := m.icp.Operator(inputInMapFrame)
		correction = c
		return icpErr
	})
	if err != nil {
		return collaboratorFailed("icp registration", err)
	}

	sensorPose := correction.Compose(estimatedSensorPose)
	m.store.setSensorPose(sensorPose)

	lastUpdate, lastPose := m.store.policySnapshot()
	if shouldUpdateMap(m.cfg, m.builder.isBusy(), timeStamp, sensorPose, m.icp.Overlap(), lastUpdate, lastPose) {
		correctedInput, err := transform.Apply(correction, inputInMapFrame)
		if err != nil {
			return collaboratorFailed("transforming input to corrected map frame", err)
		}
		return m.updateMap(correctedInput, timeStamp)
	}
	return nil
}

// updateMap dispatches the map builder: bookkeeping is recorded
// synchronously before dispatch so a concurrent ProcessInput's policy check
// sees consistent state even while this build is in flight.
func (m *Mapper) updateMap(cloud *pointcloud.PointCloud, timeStamp time.Time) error {
	pose := m.store.getSensorPose()
	m.store.recordUpdateBookkeeping(timeStamp, pose)
	mapSnapshot := m.store.getMap()

	build := func() error {
		nextMap, err := buildMap(cloud, mapSnapshot, pose, m.cfg, m.mapPostFilters)
		if err != nil {
			return collaboratorFailed("build", err)
		}
		if err := m.store.setMap(nextMap, pose, m.cfg); err != nil {
			return collaboratorFailed("setMap", err)
		}
		m.logger.Debugw("map build committed", "points", nextMap.Size())
		return nil
	}

	isFirstBuild := !m.hasBuilt.Swap(true)
	if m.cfg.IsOnline && !isFirstBuild {
		started := m.builder.tryRun(func() {
			if err := build(); err != nil {
				m.logger.Errorw("background map build failed", "error", err)
			}
		})
		if !started {
			m.logger.Debugw("dropped map update, a build is already in flight")
		}
		return nil
	}
	return build()
}

// GetMap returns a snapshot copy of the current map.
func (m *Mapper) GetMap() *pointcloud.PointCloud {
	return m.store.getMap()
}

// SetMap seeds or overrides the map, e.g. from an externally loaded initial
// map. Subject to the same preconditions as the builder's commit path.
func (m *Mapper) SetMap(newMap *pointcloud.PointCloud, sensorPose transform.Rigid) error {
	if err := m.store.setMap(newMap, sensorPose, m.cfg); err != nil {
		return err
	}
	m.store.setSensorPose(sensorPose)
	return nil
}

// GetNewMap implements the edge-triggered publisher API: returns true and
// sets *out if a map has been committed since the last call.
func (m *Mapper) GetNewMap(out **pointcloud.PointCloud) bool {
	return m.store.getNewMap(out)
}

// SensorPose returns the last ICP-corrected sensor pose.
func (m *Mapper) SensorPose() transform.Rigid {
	return m.store.getSensorPose()
}

// Close awaits any outstanding builder task. Shutdown is cooperative: there
// is no cancellation, callers simply stop invoking ProcessInput and await
// whatever build is already running.
func (m *Mapper) Close() {
	m.builder.wait()
}
