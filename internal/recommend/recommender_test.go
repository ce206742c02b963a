// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package recommend

import (
	"math"
	"sync"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    FeatureVector
		b    FeatureVector
		want float64
	}{
		{
			name: "identical vectors score 1",
			a:    FeatureVector{"medical": 1, "es": 0.5},
			b:    FeatureVector{"medical": 1, "es": 0.5},
			want: 1,
		},
		{
			name: "disjoint keys score 0",
			a:    FeatureVector{"medical": 1},
			b:    FeatureVector{"legal": 1},
			want: 0,
		},
		{
			name: "empty first vector scores 0",
			a:    FeatureVector{},
			b:    FeatureVector{"medical": 1},
			want: 0,
		},
		{
			name: "zero-magnitude vector scores 0",
			a:    FeatureVector{"medical": 0},
			b:    FeatureVector{"medical": 1},
			want: 0,
		},
		{
			name: "scaled vector still scores 1",
			a:    FeatureVector{"medical": 1, "es": 2},
			b:    FeatureVector{"medical": 10, "es": 20},
			want: 1,
		},
		{
			name: "opposite vectors score -1",
			a:    FeatureVector{"medical": 1},
			b:    FeatureVector{"medical": -1},
			want: -1,
		},
		{
			name: "orthogonal-with-overlap",
			a:    FeatureVector{"x": 1, "y": 0},
			b:    FeatureVector{"x": 0, "y": 1},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %f, want %f", got, tt.want)
			}
			// Symmetric.
			if rev := CosineSimilarity(tt.b, tt.a); math.Abs(rev-got) > 1e-9 {
				t.Errorf("similarity not symmetric: %f vs %f", got, rev)
			}
		})
	}
}

func TestFeatureVector_Clone(t *testing.T) {
	orig := FeatureVector{"a": 1, "b": 2}
	clone := orig.Clone()
	clone["a"] = 99
	if orig["a"] != 1 {
		t.Errorf("mutating clone changed original: %f", orig["a"])
	}
}

func TestRecommender_RecordInteraction(t *testing.T) {
	r := NewRecommender()
	r.SetContentProfile("phrases-es-medical", FeatureVector{"es": 1, "medical": 1})

	t.Run("unknown item is ignored", func(t *testing.T) {
		r.RecordInteraction(Interaction{UserID: "u1", ItemID: "missing", Weight: 1})
		if r.UserCount() != 0 {
			t.Errorf("UserCount() = %d, want 0", r.UserCount())
		}
	})

	t.Run("interactions accumulate weighted profiles", func(t *testing.T) {
		r.RecordInteraction(Interaction{UserID: "u1", ItemID: "phrases-es-medical", Weight: 2})
		r.RecordInteraction(Interaction{UserID: "u1", ItemID: "phrases-es-medical", Weight: 3})
		if r.UserCount() != 1 {
			t.Fatalf("UserCount() = %d, want 1", r.UserCount())
		}

		pref := r.userPreferences["u1"]
		if pref["es"] != 5 || pref["medical"] != 5 {
			t.Errorf("preference = %v, want es=5 medical=5", pref)
		}
	})
}

func TestRecommender_Recommend(t *testing.T) {
	r := NewRecommender()
	r.SetContentProfile("es-medical", FeatureVector{"es": 1, "medical": 1})
	r.SetContentProfile("es-general", FeatureVector{"es": 1, "general": 1})
	r.SetContentProfile("fr-legal", FeatureVector{"fr": 1, "legal": 1})

	r.RecordInteraction(Interaction{UserID: "clinician", ItemID: "es-medical", Weight: 5})

	t.Run("ranks the interacted item highest", func(t *testing.T) {
		recs := r.Recommend("clinician", 3)
		if len(recs) != 3 {
			t.Fatalf("len = %d, want 3", len(recs))
		}
		if recs[0].ItemID != "es-medical" {
			t.Errorf("top recommendation = %q, want es-medical", recs[0].ItemID)
		}
		if math.Abs(recs[0].Similarity-1) > 1e-9 {
			t.Errorf("top similarity = %f, want 1", recs[0].Similarity)
		}
		if recs[2].ItemID != "fr-legal" || recs[2].Similarity != 0 {
			t.Errorf("bottom recommendation = %+v, want fr-legal at 0", recs[2])
		}
		// Ranking is non-increasing.
		for i := 1; i < len(recs); i++ {
			if recs[i].Similarity > recs[i-1].Similarity {
				t.Errorf("recs[%d].Similarity = %f above previous %f",
					i, recs[i].Similarity, recs[i-1].Similarity)
			}
		}
	})

	t.Run("truncates to count", func(t *testing.T) {
		recs := r.Recommend("clinician", 1)
		if len(recs) != 1 {
			t.Errorf("len = %d, want 1", len(recs))
		}
	})

	t.Run("unknown user gets an empty list", func(t *testing.T) {
		recs := r.Recommend("stranger", 5)
		if recs == nil {
			t.Fatal("Recommend() = nil, want empty slice")
		}
		if len(recs) != 0 {
			t.Errorf("len = %d, want 0", len(recs))
		}
	})

	t.Run("non-positive count yields empty list", func(t *testing.T) {
		if recs := r.Recommend("clinician", 0); len(recs) != 0 {
			t.Errorf("len = %d, want 0", len(recs))
		}
	})
}

func TestRecommender_TieBreakDeterministic(t *testing.T) {
	r := NewRecommender()
	// Two items with identical profiles tie on similarity.
	r.SetContentProfile("bbb", FeatureVector{"es": 1})
	r.SetContentProfile("aaa", FeatureVector{"es": 1})
	r.RecordInteraction(Interaction{UserID: "u", ItemID: "aaa", Weight: 1})

	for i := 0; i < 5; i++ {
		recs := r.Recommend("u", 2)
		if len(recs) != 2 {
			t.Fatalf("len = %d, want 2", len(recs))
		}
		if recs[0].ItemID != "aaa" || recs[1].ItemID != "bbb" {
			t.Fatalf("tie order = [%s %s], want [aaa bbb]", recs[0].ItemID, recs[1].ItemID)
		}
	}
}

func TestRecommender_SetContentProfileCopies(t *testing.T) {
	r := NewRecommender()
	profile := FeatureVector{"es": 1}
	r.SetContentProfile("item", profile)
	profile["es"] = 42

	if r.contentProfiles["item"]["es"] != 1 {
		t.Error("SetContentProfile stored a reference instead of a copy")
	}
}

func TestRecommender_ConcurrentAccess(t *testing.T) {
	r := NewRecommender()
	r.SetContentProfile("item", FeatureVector{"es": 1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.RecordInteraction(Interaction{UserID: "u", ItemID: "item", Weight: 1})
		}()
		go func() {
			defer wg.Done()
			_ = r.Recommend("u", 3)
		}()
	}
	wg.Wait()

	if r.ContentCount() != 1 {
		t.Errorf("ContentCount() = %d, want 1", r.ContentCount())
	}
}
