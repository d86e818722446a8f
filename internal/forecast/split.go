package forecast

import (
	"sort"

	"dpcli/internal/feature"
	"dpcli/internal/ledger"
)

// Split partitions a feature table by calendar week: rows at or before the
// cutoff train, rows after it evaluate. Pure and deterministic.
func Split(rows []feature.Row, cutoff ledger.Week) (train, test []feature.Row) {
	for _, r := range rows {
		if r.Week.After(cutoff) {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	return train, test
}

// Gate is the sufficiency decision for one entity.
type Gate struct {
	TrainRows int
	TestRows  int
	Dedicated bool
}

// SufficiencyGate decides, per entity, whether a dedicated model is
// justified: enough training history and at least one evaluation row
// (a dedicated model that cannot be evaluated must not be trained). The gate
// is a pure function of row counts.
func SufficiencyGate(train, test []feature.Row, minTrainRows int) map[string]Gate {
	gates := make(map[string]Gate)
	for _, r := range train {
		g := gates[r.EntityID]
		g.TrainRows++
		gates[r.EntityID] = g
	}
	for _, r := range test {
		g := gates[r.EntityID]
		g.TestRows++
		gates[r.EntityID] = g
	}
	for entity, g := range gates {
		g.Dedicated = g.TrainRows >= minTrainRows && g.TestRows > 0
		gates[entity] = g
	}
	return gates
}

// groupByEntity indexes rows per entity, preserving week order within each
// group when the input is week-sorted.
func groupByEntity(rows []feature.Row) map[string][]feature.Row {
	groups := make(map[string][]feature.Row)
	for _, r := range rows {
		groups[r.EntityID] = append(groups[r.EntityID], r)
	}
	return groups
}

// sortedKeys returns the entity keys in deterministic order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
