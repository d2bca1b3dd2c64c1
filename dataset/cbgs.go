package dataset

import (
	"golang.org/x/exp/rand"
)

// balancedSampleIndices builds the class-balanced resampling table: for each
// configured class, the records containing it are resampled (uniformly, with
// replacement) so every class contributes an equal fraction of the epoch.
// The table is built once at construction with the caller's random stream.
func balancedSampleIndices(infos []SampleRecord, classes []string, rng *rand.Rand) []int {
	classRecords := make([][]int, len(classes))
	classIdx := make(map[string]int, len(classes))
	for i, name := range classes {
		classIdx[name] = i
	}

	for recIdx := range infos {
		seen := make(map[int]bool)
		for i := range infos[recIdx].AnnInfos {
			name := detectionName(infos[recIdx].AnnInfos[i].CategoryName)
			if cls, ok := classIdx[name]; ok && !seen[cls] {
				seen[cls] = true
				classRecords[cls] = append(classRecords[cls], recIdx)
			}
		}
	}

	total := 0
	for _, recs := range classRecords {
		total += len(recs)
	}
	if total == 0 {
		return nil
	}

	frac := 1.0 / float64(len(classes))
	var indices []int
	for _, recs := range classRecords {
		if len(recs) == 0 {
			continue
		}
		ratio := frac / (float64(len(recs)) / float64(total))
		n := int(float64(len(recs)) * ratio)
		for i := 0; i < n; i++ {
			indices = append(indices, recs[rng.Intn(len(recs))])
		}
	}
	return indices
}
