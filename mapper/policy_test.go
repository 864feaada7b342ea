package mapper

import (
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/brunokinder/norlab-icp-mapper/transform"
)

func TestShouldUpdateMapFalseWhenNotMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IsMapping = false
	got := shouldUpdateMap(cfg, false, time.Now(), transform.Identity(3), 0, time.Time{}, transform.Identity(3))
	test.That(t, got, test.ShouldBeFalse)
}

func TestShouldUpdateMapFalseWhenBusyOnline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IsOnline = true
	cfg.MapUpdateCondition = "overlap"
	got := shouldUpdateMap(cfg, true, time.Now(), transform.Identity(3), 0, time.Time{}, transform.Identity(3))
	test.That(t, got, test.ShouldBeFalse)
}

func TestShouldUpdateMapOverlapCondition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapUpdateCondition = "overlap"
	cfg.MapUpdateOverlap = 0.9

	test.That(t, shouldUpdateMap(cfg, false, time.Now(), transform.Identity(3), 0.5, time.Time{}, transform.Identity(3)), test.ShouldBeTrue)
	test.That(t, shouldUpdateMap(cfg, false, time.Now(), transform.Identity(3), 1.0, time.Time{}, transform.Identity(3)), test.ShouldBeFalse)
}

func TestShouldUpdateMapDelayCondition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapUpdateCondition = "delay"
	cfg.MapUpdateDelay = 1

	last := time.Now()
	soon := last.Add(500 * time.Millisecond)
	later := last.Add(2 * time.Second)

	test.That(t, shouldUpdateMap(cfg, false, soon, transform.Identity(3), 0, last, transform.Identity(3)), test.ShouldBeFalse)
	test.That(t, shouldUpdateMap(cfg, false, later, transform.Identity(3), 0, last, transform.Identity(3)), test.ShouldBeTrue)
}

func TestShouldUpdateMapDistanceCondition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapUpdateCondition = "distance"
	cfg.MapUpdateDistance = 0.5

	origin := transform.Identity(3)
	near := translatedPose(t, 0.1, 0, 0)
	far := translatedPose(t, 1, 0, 0)

	test.That(t, shouldUpdateMap(cfg, false, time.Now(), near, 0, time.Time{}, origin), test.ShouldBeFalse)
	test.That(t, shouldUpdateMap(cfg, false, time.Now(), far, 0, time.Time{}, origin), test.ShouldBeTrue)
}

func translatedPose(t *testing.T, x, y, z float64) transform.Rigid {
	t.Helper()
	pose := transform.Identity(3)
	pose.Matrix.Set(0, 3, x)
	pose.Matrix.Set(1, 3, y)
	pose.Matrix.Set(2, 3, z)
	return pose
}
