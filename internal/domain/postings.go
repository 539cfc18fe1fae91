package domain

import "sort"

// UpsertPosting inserts p into a DocID-sorted postings list, replacing an
// existing posting of the same document.
func UpsertPosting(postings []Posting, p Posting) []Posting {
	i := sort.Search(len(postings), func(i int) bool { return postings[i].DocID >= p.DocID })
	if i < len(postings) && postings[i].DocID == p.DocID {
		postings[i] = p
		return postings
	}
	postings = append(postings, Posting{})
	copy(postings[i+1:], postings[i:])
	postings[i] = p
	return postings
}

// RemovePosting removes the posting of docID from a sorted postings list.
func RemovePosting(postings []Posting, docID string) []Posting {
	i := sort.Search(len(postings), func(i int) bool { return postings[i].DocID >= docID })
	if i < len(postings) && postings[i].DocID == docID {
		return append(postings[:i], postings[i+1:]...)
	}
	return postings
}

// ValidPostings reports whether postings are strictly sorted by DocID.
func ValidPostings(postings []Posting) bool {
	for i := 1; i < len(postings); i++ {
		if postings[i-1].DocID >= postings[i].DocID {
			return false
		}
	}
	return true
}
