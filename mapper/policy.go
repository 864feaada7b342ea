package mapper

import (
	"math"
	"time"

	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// shouldUpdateMap decides whether the observation that just registered
// should trigger a map rebuild. builderBusy is the non-blocking poll of the
// single-slot builder's in-flight state.
func shouldUpdateMap(cfg Config, builderBusy bool, now time.Time, pose transform.Rigid, overlap float64, lastTimeMapWasUpdated time.Time, lastSensorPoseWhereMapWasUpdated transform.Rigid) bool {
	if !cfg.IsMapping {
		return false
	}
	if cfg.IsOnline && builderBusy {
		return false
	}

	switch cfg.MapUpdateCondition {
	case "overlap":
		return overlap < cfg.MapUpdateOverlap
	case "delay":
		return now.Sub(lastTimeMapWasUpdated).Seconds() > cfg.MapUpdateDelay
	case "distance":
		return math.Abs(translationDistance(pose, lastSensorPoseWhereMapWasUpdated)) > cfg.MapUpdateDistance
	default:
		return false
	}
}

// translationDistance returns the Euclidean distance between two
// transforms' translation columns, over the first D rows only.
func translationDistance(a, b transform.Rigid) float64 {
	ta, tb := a.Translation(), b.Translation()
	sum := 0.
	for i := range ta {
		d := ta[i] - tb[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
