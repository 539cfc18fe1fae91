package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertPosting(t *testing.T) {
	var postings []Posting
	postings = UpsertPosting(postings, Posting{DocID: "b.txt", TF: 1})
	postings = UpsertPosting(postings, Posting{DocID: "a.txt", TF: 2})
	postings = UpsertPosting(postings, Posting{DocID: "c.txt", TF: 1})
	postings = UpsertPosting(postings, Posting{DocID: "b.txt", TF: 5})

	assert.Equal(t, []Posting{{"a.txt", 2}, {"b.txt", 5}, {"c.txt", 1}}, postings)
	assert.True(t, ValidPostings(postings))
}

func TestRemovePosting(t *testing.T) {
	postings := []Posting{{"a.txt", 1}, {"b.txt", 1}}

	postings = RemovePosting(postings, "missing")
	assert.Len(t, postings, 2)

	postings = RemovePosting(postings, "a.txt")
	assert.Equal(t, []Posting{{"b.txt", 1}}, postings)

	postings = RemovePosting(postings, "b.txt")
	assert.Empty(t, postings)
}

func TestValidPostings(t *testing.T) {
	assert.True(t, ValidPostings(nil))
	assert.False(t, ValidPostings([]Posting{{"b", 1}, {"a", 1}}))
	assert.False(t, ValidPostings([]Posting{{"a", 1}, {"a", 2}}))
}

func TestVectorSnapshotEntries(t *testing.T) {
	snap := &VectorSnapshot{Dimension: 1, Vectors: map[string][]float32{
		"b.txt": {2},
		"a.txt": {1},
	}}
	assert.Equal(t, []VectorEntry{{"a.txt", []float32{1}}, {"b.txt", []float32{2}}}, snap.Entries())
}
