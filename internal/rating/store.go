// Package rating holds surface-aware Elo ratings and the rule that advances them.
package rating

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/baseline-edge/internal/models"
)

// DefaultRating is assigned to players before their first match
const DefaultRating = 1500.0

// StoreConfig configures rating defaults and surface blending
type StoreConfig struct {
	DefaultRating     float64 `mapstructure:"default_rating"`
	MinSurfaceMatches int     `mapstructure:"min_surface_matches"`
}

// Record is one player's rating state
type Record struct {
	Player         string
	Overall        float64
	Surface        map[models.Surface]float64
	Matches        int
	SurfaceMatches map[models.Surface]int
	LastPlayed     time.Time
}

func (r *Record) clone() *Record {
	out := *r
	out.Surface = make(map[models.Surface]float64, len(r.Surface))
	for k, v := range r.Surface {
		out.Surface[k] = v
	}
	out.SurfaceMatches = make(map[models.Surface]int, len(r.SurfaceMatches))
	for k, v := range r.SurfaceMatches {
		out.SurfaceMatches[k] = v
	}
	return &out
}

// Blended is a player's effective rating on a surface
type Blended struct {
	Rating float64
	// Weight is the share of the surface rating in the blend
	Weight float64
	Source models.RatingSource
}

// Store holds every rated player for one replay run. It has a single writer, the Updater,
// and is never shared between runs.
type Store struct {
	cfg     StoreConfig
	records map[string]*Record
}

// NewStore creates an empty rating store
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DefaultRating == 0 {
		cfg.DefaultRating = DefaultRating
	}
	if cfg.MinSurfaceMatches <= 0 {
		return nil, fmt.Errorf("min surface matches must be positive, got %d", cfg.MinSurfaceMatches)
	}
	return &Store{cfg: cfg, records: make(map[string]*Record)}, nil
}

// Config returns the store configuration
func (s *Store) Config() StoreConfig {
	return s.cfg
}

// Len returns the number of rated players
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns a copy of a player's record
func (s *Store) Get(player string) (Record, bool) {
	r, ok := s.records[player]
	if !ok {
		return Record{}, false
	}
	return *r.clone(), true
}

// recordOrDefault returns the stored record, or an unrated record that is not yet stored
func (s *Store) recordOrDefault(player string) *Record {
	if r, ok := s.records[player]; ok {
		return r
	}
	return s.newRecord(player)
}

func (s *Store) newRecord(player string) *Record {
	r := &Record{
		Player:         player,
		Overall:        s.cfg.DefaultRating,
		Surface:        make(map[models.Surface]float64, len(models.Surfaces)),
		SurfaceMatches: make(map[models.Surface]int, len(models.Surfaces)),
	}
	for _, surface := range models.Surfaces {
		r.Surface[surface] = s.cfg.DefaultRating
	}
	return r
}

func (s *Store) put(r *Record) {
	s.records[r.Player] = r
}

// blend applies R = w*surface + (1-w)*overall with w = min(1, surface matches / threshold)
func (s *Store) blend(r *Record, surface models.Surface) Blended {
	if r.Matches == 0 {
		return Blended{Rating: r.Overall, Source: models.RatingSourceDefault}
	}
	sm := r.SurfaceMatches[surface]
	w := math.Min(1, float64(sm)/float64(s.cfg.MinSurfaceMatches))
	b := Blended{
		Rating: w*r.Surface[surface] + (1-w)*r.Overall,
		Weight: w,
	}
	switch {
	case sm == 0:
		b.Source = models.RatingSourceOverall
	case w >= 1:
		b.Source = models.RatingSourceSurface
	default:
		b.Source = models.RatingSourceBlended
	}
	return b
}

// Rating returns a player's blended rating on a surface. Unrated players get the default
// rating with the default tag and ok=false.
func (s *Store) Rating(player string, surface models.Surface) (Blended, bool) {
	r, ok := s.records[player]
	if !ok {
		return Blended{Rating: s.cfg.DefaultRating, Source: models.RatingSourceDefault}, false
	}
	return s.blend(r, surface), true
}

var sourceRank = map[models.RatingSource]int{
	models.RatingSourceDefault: 0,
	models.RatingSourceOverall: 1,
	models.RatingSourceBlended: 2,
	models.RatingSourceSurface: 3,
}

// Source tags a pairing by the weaker of the two players' rating sources
func (s *Store) Source(a, b string, surface models.Surface) models.RatingSource {
	ra, _ := s.Rating(a, surface)
	rb, _ := s.Rating(b, surface)
	if sourceRank[ra.Source] <= sourceRank[rb.Source] {
		return ra.Source
	}
	return rb.Source
}

// Snapshot returns every record sorted by player id
func (s *Store) Snapshot() []models.RatingSnapshot {
	players := make([]string, 0, len(s.records))
	for p := range s.records {
		players = append(players, p)
	}
	sort.Strings(players)

	out := make([]models.RatingSnapshot, 0, len(players))
	for _, p := range players {
		r := s.records[p].clone()
		out = append(out, models.RatingSnapshot{
			Player:         r.Player,
			Overall:        r.Overall,
			Surface:        r.Surface,
			Matches:        r.Matches,
			SurfaceMatches: r.SurfaceMatches,
			LastPlayed:     r.LastPlayed,
		})
	}
	return out
}
