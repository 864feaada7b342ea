package mapper

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfigIsValid(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
}

func TestValidateRejectsBadMapUpdateCondition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapUpdateCondition = "nonsense"
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	_, ok := err.(*PreconditionViolated)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestValidateRejectsOutOfRangeOverlap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapUpdateOverlap = 1.5
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsNegativeSensorMaxRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SensorMaxRange = -1
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestValidateRejectsBeamHalfAngleOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BeamHalfAngle = 10
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, DefaultConfig())
}

func TestLoadConfigFromYAMLOverridesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapper.yaml")
	content := "mapUpdateCondition: distance\nmapUpdateDistance: 2.5\nis3D: false\n"
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)

	cfg, err := LoadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MapUpdateCondition, test.ShouldEqual, "distance")
	test.That(t, cfg.MapUpdateDistance, test.ShouldEqual, 2.5)
	test.That(t, cfg.Is3D, test.ShouldBeFalse)
	test.That(t, cfg.MinDistNewPoint, test.ShouldEqual, DefaultConfig().MinDistNewPoint)
}

func TestDimFollowsIs3D(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Is3D = true
	test.That(t, cfg.dim(), test.ShouldEqual, 3)
	cfg.Is3D = false
	test.That(t, cfg.dim(), test.ShouldEqual, 2)
}
