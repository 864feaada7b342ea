package mapper

import (
	"math"

	"github.com/brunokinder/norlab-icp-mapper/knn"
	"github.com/brunokinder/norlab-icp-mapper/pointcloud"
	"github.com/brunokinder/norlab-icp-mapper/transform"
)

// updateDynamicProbability mutates currentMap's probabilityDynamic
// descriptor in place using a Bayesian update rule. It down-weights
// evidence from grazing view rays, large angular mismatch, and radial
// deltas inconsistent with occlusion-vs-transparency geometry.
func updateDynamicProbability(currentInput, currentMap *pointcloud.PointCloud, currentSensorPose transform.Rigid, cfg Config) error {
	inputInSensorFrame, err := transform.Apply(currentSensorPose.Inverse(), currentInput)
	if err != nil {
		return err
	}
	if inputInSensorFrame.IsEmpty() {
		return nil
	}
	inputAngles, inputRadii := sphericalAngles(inputInSensorFrame)
	inputTree := knn.New(inputAngles)

	cropped, globalIDs, err := cropToSensorRange(currentMap, currentSensorPose, cfg.SensorMaxRange)
	if err != nil {
		return err
	}
	if cropped.IsEmpty() {
		return nil
	}
	croppedInSensorFrame, err := transform.Apply(currentSensorPose.Inverse(), cropped)
	if err != nil {
		return err
	}
	mapAngles, mapRadii := sphericalAngles(croppedInSensorFrame)
	normals, hasNormals := croppedInSensorFrame.Descriptor(pointcloud.DescriptorNormals)
	if !hasNormals {
		return newPreconditionViolated("updateDynamicProbability: map lacks a normals descriptor")
	}

	probDynamic, ok := currentMap.Descriptor(pointcloud.DescriptorProbabilityDynamic)
	if !ok {
		return newPreconditionViolated("updateDynamicProbability: map lacks a probabilityDynamic descriptor")
	}

	maxAngularSq := (2 * cfg.BeamHalfAngle) * (2 * cfg.BeamHalfAngle)
	_, nCroppedPoints := mapAngles.Dims()
	for j := 0; j < nCroppedPoints; j++ {
		query := []float64{mapAngles.At(0, j), mapAngles.At(1, j)}
		res := inputTree.NearestWithinRadius(query, maxAngularSq)
		if !res.Found {
			continue
		}
		k := res.Index
		d2 := res.SquaredDist

		m := croppedInSensorFrame.Point(j)
		r := inputInSensorFrame.Point(k)
		normM := mapRadii[j]
		normR := inputRadii[k]

		delta := m.Sub(r).Norm()
		dMax := cfg.EpsilonA * normR
		offset := delta - cfg.EpsilonD

		nm := vectorAt(normals, j)
		wV := epsilonProbability + (1-epsilonProbability)*math.Abs(nm.Dot(m)/safeNorm(normM))

		wD1 := epsilonProbability + (1-epsilonProbability)*(1-math.Sqrt(d2)/(2*cfg.BeamHalfAngle))

		wD2 := dynamicEvidenceWeight(delta, normM, normR, offset, dMax, cfg.EpsilonD)
		wP2 := staticEvidenceWeight(delta, offset, dMax, cfg.EpsilonD)

		if normR+cfg.EpsilonD+dMax < normM {
			continue
		}

		globalIdx := globalIDs[j]
		p := probDynamic.At(0, globalIdx)

		var probDyn, probStat float64
		if p < cfg.ThresholdDynamic {
			c1 := 1 - wV*wD1
			c2 := wV * wD1
			probDyn = c1*p + c2*wD2*((1-cfg.Alpha)*(1-p)+cfg.Beta*p)
			probStat = c1*(1-p) + c2*wP2*(cfg.Alpha*(1-p)+(1-cfg.Beta)*p)
		} else {
			probDyn = 1 - epsilonProbability
			probStat = epsilonProbability
		}

		probDynamic.Set(0, globalIdx, probDyn/(probDyn+probStat))
	}
	return nil
}

func dynamicEvidenceWeight(delta, normM, normR, offset, dMax, epsilonD float64) float64 {
	if delta < epsilonD || normM > normR {
		return epsilonProbability
	}
	if offset < dMax {
		return epsilonProbability + (1-epsilonProbability)*offset/dMax
	}
	return 1
}

func staticEvidenceWeight(delta, offset, dMax, epsilonD float64) float64 {
	if delta < epsilonD {
		return 1
	}
	if offset < dMax {
		return epsilonProbability + (1-epsilonProbability)*(1-offset/dMax)
	}
	return epsilonProbability
}
