package oracle

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/knobs"
)

// PipelineHash fingerprints a pipeline snapshot by its stage counts: 8 hex digits of
// FNV-1a over the sorted "STAGE:count" pairs. Candidate identity and order do not matter.
func PipelineHash(candidates []funnel.Candidate) string {
	counts := make(map[funnel.Stage]int)
	for _, c := range candidates {
		counts[c.Stage]++
	}
	pairs := make([]string, 0, len(counts))
	for s, n := range counts {
		pairs = append(pairs, fmt.Sprintf("%s:%d", s, n))
	}
	sort.Strings(pairs)

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.Join(pairs, ",")))
	return fmt.Sprintf("%08x", h.Sum32())
}

// CacheKey identifies a forecast: identical keys always yield identical results.
func CacheKey(reqID string, candidates []funnel.Candidate, seed string, k knobs.Settings) string {
	return fmt.Sprintf("oracle-%s-%s-%s-%s-%s-%d",
		reqID, PipelineHash(candidates), seed, k.PriorWeight, k.MinNThreshold, k.Iterations)
}
