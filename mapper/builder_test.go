package mapper

import (
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/brunokinder/norlab-icp-mapper/filter"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

func TestBuildMapFirstBuildUsesInputAsIs(t *testing.T) {
	cfg := DefaultConfig()
	input, err := pointcloud.NewFromPoints(3, []r3.Vector{{X: 1}, {X: 2}})
	test.That(t, err, test.ShouldBeNil)

	out, err := buildMap(input, pointcloud.New(3), transform.Identity(3), cfg, filter.Chain{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 2)
}

func TestBuildMapGrowsWithNovelPoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDistNewPoint = 0.1

	currentMap, err := pointcloud.NewFromPoints(3, []r3.Vector{{X: 0, Y: 0, Z: 0}})
	test.That(t, err, test.ShouldBeNil)

	input, err := pointcloud.NewFromPoints(3, []r3.Vector{{X: 50, Y: 0, Z: 0}})
	test.That(t, err, test.ShouldBeNil)

	out, err := buildMap(input, currentMap, transform.Identity(3), cfg, filter.Chain{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 2)
}

func TestBuildSlotDropsSecondRunWhileBusy(t *testing.T) {
	var slot buildSlot
	release := make(chan struct{})
	started := make(chan struct{})

	ok := slot.tryRun(func() {
		close(started)
		<-release
	})
	test.That(t, ok, test.ShouldBeTrue)
	<-started

	test.That(t, slot.isBusy(), test.ShouldBeTrue)
	second := slot.tryRun(func() {})
	test.That(t, second, test.ShouldBeFalse)

	close(release)
	slot.wait()
	test.That(t, slot.isBusy(), test.ShouldBeFalse)
}

func TestBuildSlotAllowsRunAfterPreviousCompletes(t *testing.T) {
	var slot buildSlot
	var mu sync.Mutex
	count := 0

	first := slot.tryRun(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	test.That(t, first, test.ShouldBeTrue)
	slot.wait()

	second := slot.tryRun(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	test.That(t, second, test.ShouldBeTrue)
	slot.wait()

	mu.Lock()
	defer mu.Unlock()
	test.That(t, count, test.ShouldEqual, 2)
}
