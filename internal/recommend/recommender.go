// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package recommend implements the content-similarity recommender: a
// cosine-similarity ranking of content profiles against accumulated
// per-user preference vectors.
package recommend

import (
	"math"
	"sort"
	"sync"
	"time"
)

// FeatureVector is a sparse mapping from feature name to numeric weight.
// Keys are not required to match across vectors.
type FeatureVector map[string]float64

// Clone returns an independent copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(v))
	for k, w := range v {
		out[k] = w
	}
	return out
}

// CosineSimilarity computes normalized dot-product similarity over the
// union of feature keys from both vectors. A zero-magnitude vector yields
// similarity 0, not an error.
func CosineSimilarity(a, b FeatureVector) float64 {
	var dot, magA, magB float64
	for k, wa := range a {
		magA += wa * wa
		if wb, ok := b[k]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		magB += wb * wb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Interaction records one user-content interaction with a preference weight.
type Interaction struct {
	UserID    string    `json:"userId"`
	ItemID    string    `json:"itemId"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// Recommendation is one ranked content suggestion for a user.
type Recommendation struct {
	ItemID     string  `json:"itemId"`
	Similarity float64 `json:"similarity"`
}

// Recommender maintains content profiles and accumulated per-user
// preference vectors and ranks content by cosine similarity to a user's
// preferences. Safe for concurrent use.
type Recommender struct {
	mu              sync.RWMutex
	contentProfiles map[string]FeatureVector
	userPreferences map[string]FeatureVector
}

// NewRecommender creates an empty recommender.
func NewRecommender() *Recommender {
	return &Recommender{
		contentProfiles: make(map[string]FeatureVector),
		userPreferences: make(map[string]FeatureVector),
	}
}

// SetContentProfile registers or replaces the feature vector for a content
// item.
func (r *Recommender) SetContentProfile(itemID string, features FeatureVector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contentProfiles[itemID] = features.Clone()
}

// RecordInteraction accumulates a weighted copy of the item's profile into
// the user's preference vector. Interactions against unknown items are
// ignored.
func (r *Recommender) RecordInteraction(inter Interaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.contentProfiles[inter.ItemID]
	if !ok {
		return
	}
	pref, ok := r.userPreferences[inter.UserID]
	if !ok {
		pref = make(FeatureVector, len(profile))
		r.userPreferences[inter.UserID] = pref
	}
	for k, w := range profile {
		pref[k] += inter.Weight * w
	}
}

// Recommend ranks content profiles by similarity to the user's preference
// vector, truncated to count. A user with no preference vector gets an
// empty list.
func (r *Recommender) Recommend(userID string, count int) []Recommendation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pref, ok := r.userPreferences[userID]
	if !ok || count <= 0 {
		return []Recommendation{}
	}

	recs := make([]Recommendation, 0, len(r.contentProfiles))
	for itemID, profile := range r.contentProfiles {
		recs = append(recs, Recommendation{
			ItemID:     itemID,
			Similarity: CosineSimilarity(pref, profile),
		})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Similarity == recs[j].Similarity {
			return recs[i].ItemID < recs[j].ItemID // deterministic order for ties
		}
		return recs[i].Similarity > recs[j].Similarity
	})
	if len(recs) > count {
		recs = recs[:count]
	}
	return recs
}

// ContentCount returns the number of registered content profiles.
func (r *Recommender) ContentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contentProfiles)
}

// UserCount returns the number of users with accumulated preferences.
func (r *Recommender) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userPreferences)
}
