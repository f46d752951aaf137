package extraction

import (
	"order_worker/core/domain"
	"order_worker/core/service/normalize"

	"github.com/rs/zerolog"
)

// =============================================================================
// Duplicate detection
// =============================================================================

// dedupKey is the exact (brand, name) pair. Missing brands use the
// UnknownBrand sentinel on both sides.
type dedupKey struct {
	brand string
	name  string
}

func productKey(p domain.ExtractedProduct) dedupKey {
	return dedupKey{brand: p.BrandOrUnknown(), name: p.Name}
}

func itemKey(i domain.InventoryItem) dedupKey {
	return dedupKey{brand: i.BrandOrUnknown(), name: i.Name}
}

// IsDuplicate reports whether inventory holds an item with exactly the same
// brand and name as candidate.
func IsDuplicate(candidate domain.ExtractedProduct, inventory []domain.InventoryItem) bool {
	k := productKey(candidate)
	for _, item := range inventory {
		if itemKey(item) == k {
			return true
		}
	}
	return false
}

// Snapshot is the in-memory view of a user's inventory for one batch.
// Accepted products are appended so later emails in the same batch see
// them. Not safe for concurrent use.
type Snapshot struct {
	keys   map[dedupKey]bool
	images map[string]string // image key -> name, evidence only
}

// NewSnapshot indexes items.
func NewSnapshot(items []domain.InventoryItem) *Snapshot {
	s := &Snapshot{
		keys:   make(map[dedupKey]bool, len(items)),
		images: make(map[string]string),
	}
	for _, item := range items {
		s.keys[itemKey(item)] = true
		if k := normalize.ImageKey(item.ImageURL); k != "" {
			s.images[k] = item.Name
		}
	}
	return s
}

// Contains reports whether p's key is already in the snapshot.
func (s *Snapshot) Contains(p domain.ExtractedProduct) bool {
	return s.keys[productKey(p)]
}

// Add records p as owned.
func (s *Snapshot) Add(p domain.ExtractedProduct) {
	s.keys[productKey(p)] = true
	if p.NormalizedImageURL != "" {
		s.images[p.NormalizedImageURL] = p.Name
	}
}

// imageOwner returns the name of an item sharing p's image key.
func (s *Snapshot) imageOwner(p domain.ExtractedProduct) (string, bool) {
	if p.NormalizedImageURL == "" {
		return "", false
	}
	name, ok := s.images[p.NormalizedImageURL]
	return name, ok
}

// Len returns the number of distinct keys.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Deduplicator filters candidates against a Snapshot.
type Deduplicator struct {
	log zerolog.Logger
}

func NewDeduplicator(log zerolog.Logger) *Deduplicator {
	return &Deduplicator{log: log.With().Str("component", "deduplicator").Logger()}
}

// FilterNew splits candidates into accepted and duplicate products, in
// input order. Accepted products are added to snap.
func (d *Deduplicator) FilterNew(candidates []domain.ExtractedProduct, snap *Snapshot) (accepted, duplicates []domain.ExtractedProduct) {
	for _, p := range candidates {
		if snap.Contains(p) {
			duplicates = append(duplicates, p)
			continue
		}
		// 이미지 일치는 참고용 로그만 남김
		if owner, ok := snap.imageOwner(p); ok {
			d.log.Debug().
				Str("email_id", p.EmailID).
				Str("name", p.Name).
				Str("image_match", owner).
				Msg("image matches an owned item, kept as distinct")
		}
		snap.Add(p)
		accepted = append(accepted, p)
	}
	return accepted, duplicates
}
