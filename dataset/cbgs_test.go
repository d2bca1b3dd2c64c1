package dataset

import (
	"testing"

	"go.viam.com/test"
	"golang.org/x/exp/rand"
)

func cbgsRecord(categories ...string) SampleRecord {
	anns := make([]Annotation, len(categories))
	for i, c := range categories {
		anns[i] = Annotation{CategoryName: c, NumLidarPts: 1}
	}
	return SampleRecord{AnnInfos: anns}
}

func TestBalancedSampleIndices(t *testing.T) {
	infos := []SampleRecord{
		cbgsRecord("vehicle.car"),
		cbgsRecord("vehicle.car"),
		cbgsRecord("vehicle.car"),
		cbgsRecord("vehicle.car", "human.pedestrian.adult"),
	}
	classes := []string{"car", "pedestrian"}
	rng := rand.New(rand.NewSource(7))

	indices := balancedSampleIndices(infos, classes, rng)
	test.That(t, len(indices), test.ShouldBeGreaterThan, 0)

	seen := make(map[int]bool)
	for _, idx := range indices {
		test.That(t, idx, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, idx, test.ShouldBeLessThan, len(infos))
		seen[idx] = true
	}

	// the pedestrian class only occurs in record 3, so balancing must
	// repeat it to reach its share
	pedCount := 0
	for _, idx := range indices {
		if idx == 3 {
			pedCount++
		}
	}
	test.That(t, pedCount, test.ShouldBeGreaterThan, 1)
}

func TestBalancedSampleIndicesEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	test.That(t, balancedSampleIndices(nil, []string{"car"}, rng), test.ShouldBeNil)

	infos := []SampleRecord{cbgsRecord("animal")}
	test.That(t, balancedSampleIndices(infos, []string{"car"}, rng), test.ShouldBeNil)
}

func TestBalancedSampleIndicesDeterministic(t *testing.T) {
	infos := []SampleRecord{
		cbgsRecord("vehicle.car"),
		cbgsRecord("vehicle.truck"),
		cbgsRecord("vehicle.car", "vehicle.truck"),
	}
	classes := []string{"car", "truck"}
	a := balancedSampleIndices(infos, classes, rand.New(rand.NewSource(42)))
	b := balancedSampleIndices(infos, classes, rand.New(rand.NewSource(42)))
	test.That(t, a, test.ShouldResemble, b)
}
