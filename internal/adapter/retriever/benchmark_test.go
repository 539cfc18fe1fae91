package retriever

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"smartfind/internal/adapter/analyzer"
)

var qualityCorpus = map[string]string{
	"notes/budget.txt":   "monthly budget spreadsheet with rent groceries and savings",
	"notes/invoice.txt":  "invoice for consulting work paid by bank transfer",
	"work/meeting.txt":   "meeting notes project deadline and team tasks",
	"work/roadmap.md":    "project roadmap milestones deadline for the release",
	"home/recipe.txt":    "banana bread recipe with walnuts and cinnamon",
	"home/travel.md":     "travel itinerary for the summer holiday in portugal",
	"research/paper.txt": "research paper on neural retrieval models and experiments",
}

func TestLexicalRetrievalQuality(t *testing.T) {
	idx := newTestLexicalIndex(t)
	if err := idx.BulkTrain(qualityCorpus); err != nil {
		t.Fatal(err)
	}

	queries := []struct {
		query    string
		relevant []string
	}{
		{"budget savings", []string{"notes/budget.txt"}},
		{"project deadline", []string{"work/meeting.txt", "work/roadmap.md"}},
		{"banana recipe", []string{"home/recipe.txt"}},
		{"retrieval experiments", []string{"research/paper.txt"}},
	}

	var mrr float64
	for _, q := range queries {
		hits, err := idx.Search(context.Background(), q.query, 3)
		if err != nil {
			t.Fatal(err)
		}
		ids := hitIDs(hits)
		if r := RecallAtK(ids, q.relevant); r < 1 {
			t.Errorf("%q: recall@3 = %.2f, got %v", q.query, r, ids)
		}
		mrr += ReciprocalRank(ids, q.relevant[0])
	}
	mrr /= float64(len(queries))
	if mrr < 0.75 {
		t.Errorf("MRR = %.3f, want >= 0.75", mrr)
	}
}

func BenchmarkLexicalSearch(b *testing.B) {
	tokenizer := analyzer.NewTokenizer(analyzer.Options{Stopwords: true, MinTokenLen: 2})
	idx := NewLexicalIndex(nil, tokenizer, 1.2, 0.75, "bench")
	docs := make(map[string]string, 2000)
	for i := 0; i < 2000; i++ {
		docs[fmt.Sprintf("doc%04d.txt", i)] = fmt.Sprintf("%s document number %d about topic%d", qualityCorpus["work/roadmap.md"], i, i%37)
	}
	idx.mem = idx.Build(docs, time.Now())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Search(context.Background(), "project topic7 release", 10); err != nil {
			b.Fatal(err)
		}
	}
}

func TestPrecisionAtK(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []string
		relevant  []string
		wantP     float64
	}{
		{"perfect", []string{"a", "b", "c"}, []string{"a", "b", "c"}, 1.0},
		{"partial", []string{"a", "b", "x"}, []string{"a", "b", "c"}, 0.666},
		{"none", []string{"x", "y", "z"}, []string{"a", "b", "c"}, 0.0},
		{"empty_retrieved", []string{}, []string{"a", "b"}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PrecisionAtK(tc.retrieved, tc.relevant)
			if diff := p - tc.wantP; diff > 0.01 || diff < -0.01 {
				t.Errorf("precision = %.3f, want %.3f", p, tc.wantP)
			}
		})
	}
}

func TestRecallAtK(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []string
		relevant  []string
		wantR     float64
	}{
		{"perfect", []string{"a", "b", "c"}, []string{"a", "b", "c"}, 1.0},
		{"partial", []string{"a", "b", "x"}, []string{"a", "b", "c"}, 0.666},
		{"none", []string{"x", "y", "z"}, []string{"a", "b", "c"}, 0.0},
		{"empty_relevant", []string{"a", "b"}, []string{}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := RecallAtK(tc.retrieved, tc.relevant)
			if diff := r - tc.wantR; diff > 0.01 || diff < -0.01 {
				t.Errorf("recall = %.3f, want %.3f", r, tc.wantR)
			}
		})
	}
}

func TestMRR(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []string
		relevant  string
		wantMRR   float64
	}{
		{"first", []string{"a", "b", "c"}, "a", 1.0},
		{"second", []string{"x", "a", "c"}, "a", 0.5},
		{"third", []string{"x", "y", "a"}, "a", 0.333},
		{"missing", []string{"x", "y", "z"}, "a", 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mrr := ReciprocalRank(tc.retrieved, tc.relevant)
			if diff := mrr - tc.wantMRR; diff > 0.01 || diff < -0.01 {
				t.Errorf("MRR = %.3f, want %.3f", mrr, tc.wantMRR)
			}
		})
	}
}

func TestNDCG(t *testing.T) {
	cases := []struct {
		name     string
		scores   []float64
		ideal    []float64
		wantNDCG float64
	}{
		{"perfect", []float64{3, 2, 1}, []float64{3, 2, 1}, 1.0},
		{"reversed", []float64{1, 2, 3}, []float64{3, 2, 1}, 0.790},
		{"zeros", []float64{0, 0, 0}, []float64{3, 2, 1}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ndcg := NDCG(tc.scores, tc.ideal)
			if diff := ndcg - tc.wantNDCG; diff > 0.01 || diff < -0.01 {
				t.Errorf("NDCG = %.3f, want %.3f", ndcg, tc.wantNDCG)
			}
		})
	}
}

func PrecisionAtK(retrieved, relevant []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	relevantSet := make(map[string]bool)
	for _, r := range relevant {
		relevantSet[r] = true
	}
	hits := 0
	for _, r := range retrieved {
		if relevantSet[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(retrieved))
}

func RecallAtK(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relevantSet := make(map[string]bool)
	for _, r := range relevant {
		relevantSet[r] = true
	}
	hits := 0
	for _, r := range retrieved {
		if relevantSet[r] {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

func ReciprocalRank(retrieved []string, relevant string) float64 {
	for i, r := range retrieved {
		if r == relevant {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

func NDCG(scores, ideal []float64) float64 {
	dcg := calculateDCG(scores)
	idcg := calculateDCG(ideal)
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func calculateDCG(scores []float64) float64 {
	dcg := 0.0
	for i, score := range scores {
		dcg += score / math.Log2(float64(i+2))
	}
	return dcg
}
