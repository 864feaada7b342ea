package mapper

import (
	"sync"

	goutils "go.viam.com/utils"

	"github.com/brunokinder/norlab-icp-mapper/filter"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// buildMap produces the next map cloud from by-value snapshots of the
// current input, current map, and current sensor pose. It never mutates
// its arguments' backing matrices in a way visible to the caller; the
// returned cloud is committed by the caller via mapStore.setMap.
func buildMap(currentInput, currentMap *pointcloud.PointCloud, currentSensorPose transform.Rigid, cfg Config, mapPostFilters filter.Chain) (*pointcloud.PointCloud, error) {
	currentInput = currentInput.Clone()
	if cfg.ComputeProbDynamic {
		currentInput.EnsureDescriptor(pointcloud.DescriptorProbabilityDynamic, 1, cfg.PriorDynamic)
	}

	nextMap := currentMap
	if currentMap.IsEmpty() {
		nextMap = currentInput
	} else {
		nextMap = currentMap.Clone()
		if cfg.ComputeProbDynamic {
			if err := updateDynamicProbability(currentInput, nextMap, currentSensorPose, cfg); err != nil {
				return nil, err
			}
		}

		novelPoints, err := filterNovelPoints(currentInput, nextMap, currentSensorPose, cfg.MinDistNewPoint, cfg.SensorMaxRange)
		if err != nil {
			return nil, err
		}
		nextMap, err = nextMap.Concatenate(novelPoints)
		if err != nil {
			return nil, err
		}
	}

	inSensorFrame, err := transform.Apply(currentSensorPose.Inverse(), nextMap)
	if err != nil {
		return nil, err
	}
	postFiltered, err := mapPostFilters.Apply(inSensorFrame)
	if err != nil {
		return nil, err
	}
	nextMap, err = transform.Apply(currentSensorPose, postFiltered)
	if err != nil {
		return nil, err
	}
	return nextMap, nil
}

// buildSlot is a single-slot "leaky queue" for the map builder: at most one
// build runs at a time, and an observation that arrives while a build is in
// flight contributes only to registration, not to the map. Grounded on the
// background-worker idiom of a WaitGroup-tracked goroutine launched with
// goutils.PanicCapturingGo.
type buildSlot struct {
	mu   sync.Mutex
	busy bool
	wg   sync.WaitGroup
}

// tryRun launches fn in a new goroutine if no build is currently in flight,
// returning true if it did. Returns false without running fn if a build was
// already running.
func (s *buildSlot) tryRun(fn func()) bool {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return false
	}
	s.busy = true
	s.wg.Add(1)
	s.mu.Unlock()

	goutils.PanicCapturingGo(func() {
		defer s.wg.Done()
		defer s.clearBusy()
		fn()
	})
	return true
}

func (s *buildSlot) clearBusy() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// isBusy is the non-blocking poll shouldUpdateMap's online guard uses.
func (s *buildSlot) isBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// wait blocks until any in-flight build completes, used for cooperative
// shutdown.
func (s *buildSlot) wait() {
	s.wg.Wait()
}
