package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingResolver counts calls through to a fixed record set.
type countingResolver struct {
	records      map[string]*Record
	resolveCalls int
	fileCalls    int
	siblingCalls int
}

func (c *countingResolver) Resolve(_ context.Context, id string) (*Record, error) {
	c.resolveCalls++
	if rec, ok := c.records[id]; ok {
		return rec, nil
	}
	return nil, ErrNotFound
}

func (c *countingResolver) ResolveFile(_ context.Context, id, filename string) (*FileObject, error) {
	c.fileCalls++
	if _, ok := c.records[id]; ok {
		return &FileObject{Key: filename, Size: 42}, nil
	}
	return nil, ErrNotFound
}

func (c *countingResolver) Siblings(_ context.Context, familyID string) ([]*Record, error) {
	c.siblingCalls++
	var out []*Record
	for _, rec := range c.records {
		if rec.FamilyID == familyID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestCachedResolver_ResolveCachesHits(t *testing.T) {
	inner := &countingResolver{records: map[string]*Record{
		"1001": {ID: "1001", FamilyID: "1000", Title: "Dataset v1"},
	}}
	resolver, err := NewCachedResolver(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		rec, err := resolver.Resolve(ctx, "1001")
		require.NoError(t, err)
		assert.Equal(t, "Dataset v1", rec.Title)
	}

	assert.Equal(t, 1, inner.resolveCalls, "repeated lookups should hit the cache")
}

func TestCachedResolver_DoesNotCacheMisses(t *testing.T) {
	inner := &countingResolver{records: map[string]*Record{}}
	resolver, err := NewCachedResolver(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)
	}

	assert.Equal(t, 3, inner.resolveCalls)
}

func TestCachedResolver_FileCacheKeyedByRecordAndName(t *testing.T) {
	inner := &countingResolver{records: map[string]*Record{
		"1001": {ID: "1001", FamilyID: "1000"},
	}}
	resolver, err := NewCachedResolver(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = resolver.ResolveFile(ctx, "1001", "data.csv")
	require.NoError(t, err)
	_, err = resolver.ResolveFile(ctx, "1001", "data.csv")
	require.NoError(t, err)
	_, err = resolver.ResolveFile(ctx, "1001", "paper.pdf")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.fileCalls)
}

func TestCachedResolver_SiblingsNotCached(t *testing.T) {
	inner := &countingResolver{records: map[string]*Record{
		"1001": {ID: "1001", FamilyID: "1000"},
		"1002": {ID: "1002", FamilyID: "1000"},
	}}
	resolver, err := NewCachedResolver(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		sibs, err := resolver.Siblings(ctx, "1000")
		require.NoError(t, err)
		assert.Len(t, sibs, 2)
	}

	assert.Equal(t, 2, inner.siblingCalls)
}

func TestLinks(t *testing.T) {
	l := Links{BaseURL: "https://archive.example.org"}

	assert.Equal(t, "https://archive.example.org/record/1001", l.RecordHTML("1001"))
	assert.Equal(t,
		"https://archive.example.org/record/1001/files/data%20set.csv",
		l.RecordFile("1001", "data set.csv"))
}
