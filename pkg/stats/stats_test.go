package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuery returns a fixed result or error, recording the params it saw.
type fakeQuery struct {
	result Result
	err    error
	params []map[string]string
}

func (q *fakeQuery) Run(_ context.Context, params map[string]string) (Result, error) {
	q.params = append(q.params, params)
	if q.err != nil {
		return nil, q.err
	}
	return q.result, nil
}

func fullRegistry() Registry {
	return Registry{
		"record-view":                  &fakeQuery{result: Result{"count": 10, "unique_count": 7}},
		"record-download":              &fakeQuery{result: Result{"count": 4, "unique_count": 3, "volume": 1024}},
		"record-view-all-versions":     &fakeQuery{result: Result{"count": 25, "unique_count": 16}},
		"record-download-all-versions": &fakeQuery{result: Result{"count": 9, "unique_count": 6, "volume": 4096}},
	}
}

func TestBuildRecordStats_AllMetrics(t *testing.T) {
	engine := NewEngine(fullRegistry())

	snap := engine.BuildRecordStats(context.Background(), "1001", "1000")

	require.True(t, snap.Complete())
	assert.Equal(t, map[string]float64{
		"views":                    10,
		"unique_views":             7,
		"downloads":                4,
		"unique_downloads":         3,
		"volume":                   1024,
		"version_views":            25,
		"version_unique_views":     16,
		"version_downloads":        9,
		"version_unique_downloads": 6,
		"version_volume":           4096,
	}, snap.Metrics)
}

func TestBuildRecordStats_ScopesParams(t *testing.T) {
	reg := fullRegistry()
	engine := NewEngine(reg)

	engine.BuildRecordStats(context.Background(), "1001", "1000")

	// Record-scoped queries see the record id, family-scoped ones the
	// family id.
	for _, p := range reg["record-view"].(*fakeQuery).params {
		assert.Equal(t, "1001", p["record_id"])
	}
	for _, p := range reg["record-view-all-versions"].(*fakeQuery).params {
		assert.Equal(t, "1000", p["family_id"])
	}
}

func TestBuildRecordStats_PartialResult(t *testing.T) {
	reg := fullRegistry()
	reg["record-download"] = &fakeQuery{err: errors.New("index pending creation")}
	engine := NewEngine(reg)

	snap := engine.BuildRecordStats(context.Background(), "1001", "1000")

	assert.False(t, snap.Complete())
	// Download-derived metrics are dropped, views survive.
	for _, metric := range []string{"downloads", "unique_downloads", "volume"} {
		assert.NotContains(t, snap.Metrics, metric)
		assert.Contains(t, snap.Dropped, metric)
	}
	assert.Contains(t, snap.Metrics, "views")
	assert.Contains(t, snap.Metrics, "version_volume")
}

func TestBuildRecordStats_MissingField(t *testing.T) {
	reg := fullRegistry()
	// Result with no "volume" field: only that metric is absent.
	reg["record-download"] = &fakeQuery{result: Result{"count": 4, "unique_count": 3}}
	engine := NewEngine(reg)

	snap := engine.BuildRecordStats(context.Background(), "1001", "1000")

	assert.Equal(t, 4.0, snap.Metrics["downloads"])
	assert.NotContains(t, snap.Metrics, "volume")
	assert.Contains(t, snap.Dropped, "volume")
}

func TestBuildRecordStats_EmptyRegistry(t *testing.T) {
	engine := NewEngine(Registry{})

	snap := engine.BuildRecordStats(context.Background(), "1001", "1000")

	assert.Empty(t, snap.Metrics)
	assert.Len(t, snap.Dropped, len(recordMetrics))
}
