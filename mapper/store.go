package mapper

import (
	"sync"
	"time"

	"github.com/brunokinder/norlab-icp-mapper/icp"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// mapStore holds the authoritative map cloud and the sensor-pose bookkeeping
// behind the two-lock discipline of the concurrency model: mapLock guards
// the map cloud and its flags; icpMapLock guards the ICP operator's
// reference cloud and serializes registration reads against map
// replacement commits.
type mapStore struct {
	mapLock    sync.RWMutex
	icpMapLock sync.Mutex

	icp *icp.ICP

	cloud            *pointcloud.PointCloud
	sensorPose       transform.Rigid
	newMapAvailable  bool
	isMapEmpty       bool

	lastTimeMapWasUpdated            time.Time
	lastSensorPoseWhereMapWasUpdated transform.Rigid
}

func newMapStore(dim int, icpOp *icp.ICP) *mapStore {
	return &mapStore{
		icp:        icpOp,
		cloud:      pointcloud.New(dim),
		sensorPose: transform.Identity(dim),
		isMapEmpty: true,
	}
}

// getMap returns a by-value snapshot of the current map.
func (s *mapStore) getMap() *pointcloud.PointCloud {
	s.mapLock.RLock()
	defer s.mapLock.RUnlock()
	return s.cloud.Clone()
}

// mapIsEmpty reports whether the current map has zero points.
func (s *mapStore) mapIsEmpty() bool {
	s.mapLock.RLock()
	defer s.mapLock.RUnlock()
	return s.isMapEmpty
}

// getSensorPose returns a value copy of the last ICP-corrected pose,
// avoiding any lifetime hazard a reference return would create for callers
// racing the registration loop.
func (s *mapStore) getSensorPose() transform.Rigid {
	s.mapLock.RLock()
	defer s.mapLock.RUnlock()
	return s.sensorPose.Clone()
}

// setSensorPose commits the registration loop's corrected pose, before any
// map build starts.
func (s *mapStore) setSensorPose(pose transform.Rigid) {
	s.mapLock.Lock()
	defer s.mapLock.Unlock()
	s.sensorPose = pose.Clone()
}

// recordUpdateBookkeeping stamps the policy bookkeeping fields synchronously
// before the builder is dispatched, so back-to-back calls see consistent
// policy state even while a build is in flight.
func (s *mapStore) recordUpdateBookkeeping(now time.Time, pose transform.Rigid) {
	s.mapLock.Lock()
	defer s.mapLock.Unlock()
	s.lastTimeMapWasUpdated = now
	s.lastSensorPoseWhereMapWasUpdated = pose.Clone()
}

func (s *mapStore) policySnapshot() (lastUpdate time.Time, lastPose transform.Rigid) {
	s.mapLock.RLock()
	defer s.mapLock.RUnlock()
	return s.lastTimeMapWasUpdated, s.lastSensorPoseWhereMapWasUpdated.Clone()
}

// setMap installs newMap as the authoritative map and, under icpMapLock,
// replaces the ICP operator's reference cloud with newMap cropped to
// sensorMaxRange of newSensorPose.
func (s *mapStore) setMap(newMap *pointcloud.PointCloud, newSensorPose transform.Rigid, cfg Config) error {
	if cfg.ComputeProbDynamic && !newMap.HasDescriptor(pointcloud.DescriptorNormals) {
		return newPreconditionViolated("setMap: computeProbDynamic requires a normals descriptor")
	}

	cutMap, _, err := cropToSensorRange(newMap, newSensorPose, cfg.SensorMaxRange)
	if err != nil {
		return err
	}

	s.icpMapLock.Lock()
	s.icp.SetMap(cutMap)
	s.icpMapLock.Unlock()

	s.mapLock.Lock()
	s.cloud = newMap.Clone()
	s.newMapAvailable = true
	s.isMapEmpty = newMap.IsEmpty()
	s.mapLock.Unlock()
	return nil
}

// getNewMap implements the edge-triggered publisher API: if a map has been
// committed since the last call, copies it into out and clears the flag.
func (s *mapStore) getNewMap(out **pointcloud.PointCloud) bool {
	s.mapLock.Lock()
	defer s.mapLock.Unlock()
	if !s.newMapAvailable {
		return false
	}
	*out = s.cloud.Clone()
	s.newMapAvailable = false
	return true
}

// withICPLock runs f while holding icpMapLock, serializing it against
// setMap's reference-cloud replacement. Used by the registration loop
// around icp.Operator calls.
func (s *mapStore) withICPLock(f func() error) error {
	s.icpMapLock.Lock()
	defer s.icpMapLock.Unlock()
	return f()
}

// cropToSensorRange returns the subset of mapCloud (still expressed in map
// frame) whose sensor-frame distance from pose's origin is less than
// maxRange, together with globalIDs[i] giving the original column index in
// mapCloud for cropped index i. This is the shared sensor-frame round-trip
// used by ICP reference cropping, the dynamic-probability update, and the
// novelty filter.
func cropToSensorRange(mapCloud *pointcloud.PointCloud, pose transform.Rigid, maxRange float64) (cropped *pointcloud.PointCloud, globalIDs []int, err error) {
	inSensorFrame, err := transform.Apply(pose.Inverse(), mapCloud)
	if err != nil {
		return nil, nil, err
	}
	keep := make([]int, 0, mapCloud.Size())
	for i := 0; i < inSensorFrame.Size(); i++ {
		if inSensorFrame.Point(i).Norm() < maxRange {
			keep = append(keep, i)
		}
	}
	return mapCloud.SelectColumns(keep), keep, nil
}
