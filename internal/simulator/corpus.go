package simulator

import (
	"math"
	"sort"

	"github.com/yourusername/baseline-edge/internal/models"
)

// CorpusConfig sets how much history a player needs before their own numbers are used.
// SimilarityNeighbors is how many established players a thin record borrows from; 0 disables it.
type CorpusConfig struct {
	MinMatches          int  `mapstructure:"min_matches" validate:"gte=1"`
	MinSurfaceMatches   int  `mapstructure:"min_surface_matches" validate:"gte=1"`
	SimilarityNeighbors int  `mapstructure:"similarity_neighbors" validate:"gte=0"`
	AllowTourAverage    bool `mapstructure:"allow_tour_average"`
}

// DefaultCorpusConfig returns the thresholds used when none are configured
func DefaultCorpusConfig() CorpusConfig {
	return CorpusConfig{MinMatches: 10, MinSurfaceMatches: 5, SimilarityNeighbors: 5, AllowTourAverage: true}
}

// counts accumulates raw service and return point totals
type counts struct {
	servePoints  int
	firstIn      int
	firstWon     int
	secondWon    int
	retFirstPts  int
	retFirstWon  int
	retSecondPts int
	retSecondWon int
	matches      int
}

func (c *counts) add(serve, opponent models.ServeCounts) {
	c.servePoints += serve.ServePoints
	c.firstIn += serve.FirstIn
	c.firstWon += serve.FirstWon
	c.secondWon += serve.SecondWon

	c.retFirstPts += opponent.FirstIn
	c.retFirstWon += opponent.FirstIn - opponent.FirstWon
	second := opponent.ServePoints - opponent.FirstIn
	c.retSecondPts += second
	c.retSecondWon += second - opponent.SecondWon
	c.matches++
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func (c counts) stats() PlayerStats {
	return PlayerStats{
		FirstServeIn:   ratio(c.firstIn, c.servePoints),
		FirstServeWon:  ratio(c.firstWon, c.firstIn),
		SecondServeWon: ratio(c.secondWon, c.servePoints-c.firstIn),
		ReturnVsFirst:  ratio(c.retFirstWon, c.retFirstPts),
		ReturnVsSecond: ratio(c.retSecondWon, c.retSecondPts),
		Matches:        c.matches,
	}
}

type playerCounts struct {
	overall counts
	surface map[models.Surface]*counts
}

// Corpus is the append-only statistics corpus built from matches already replayed.
// It is owned by a single replay run and is not safe for concurrent writers.
type Corpus struct {
	cfg         CorpusConfig
	players     map[string]*playerCounts
	tourSurface map[models.Surface]*counts
	tour        counts
	added       int
	skipped     int
}

// NewCorpus creates an empty statistics corpus
func NewCorpus(cfg CorpusConfig) *Corpus {
	if cfg.MinMatches <= 0 {
		cfg.MinMatches = DefaultCorpusConfig().MinMatches
	}
	if cfg.MinSurfaceMatches <= 0 {
		cfg.MinSurfaceMatches = DefaultCorpusConfig().MinSurfaceMatches
	}
	return &Corpus{
		cfg:         cfg,
		players:     make(map[string]*playerCounts),
		tourSurface: make(map[models.Surface]*counts),
	}
}

// Add appends a completed match. Matches without usable serve counts for both players are
// skipped and reported as false.
func (c *Corpus) Add(m *models.Match) bool {
	if m.WinnerServe == nil || m.LoserServe == nil || !m.WinnerServe.Valid() || !m.LoserServe.Valid() {
		c.skipped++
		return false
	}
	w, l := *m.WinnerServe, *m.LoserServe

	c.player(m.Winner).overall.add(w, l)
	c.player(m.Winner).onSurface(m.Surface).add(w, l)
	c.player(m.Loser).overall.add(l, w)
	c.player(m.Loser).onSurface(m.Surface).add(l, w)

	// tour totals count one entry per player-match so averages weight every service game equally
	c.tour.add(w, l)
	c.tour.add(l, w)
	ts := c.tourSurface[m.Surface]
	if ts == nil {
		ts = &counts{}
		c.tourSurface[m.Surface] = ts
	}
	ts.add(w, l)
	ts.add(l, w)

	c.added++
	return true
}

func (c *Corpus) player(id string) *playerCounts {
	p := c.players[id]
	if p == nil {
		p = &playerCounts{surface: make(map[models.Surface]*counts)}
		c.players[id] = p
	}
	return p
}

func (p *playerCounts) onSurface(s models.Surface) *counts {
	sc := p.surface[s]
	if sc == nil {
		sc = &counts{}
		p.surface[s] = sc
	}
	return sc
}

// Len returns the number of matches contributing statistics
func (c *Corpus) Len() int {
	return c.added
}

// Skipped returns the number of matches without usable serve counts
func (c *Corpus) Skipped() int {
	return c.skipped
}

// TourAverages returns population rates on a surface from the matches added so far.
// A surface with no data falls back to all surfaces. ok is false when the corpus is empty.
func (c *Corpus) TourAverages(surface models.Surface) (TourAverages, bool) {
	src := c.tourSurface[surface]
	if src == nil || src.matches == 0 {
		src = &c.tour
	}
	if src.matches == 0 {
		return TourAverages{}, false
	}
	s := src.stats()
	return TourAverages{
		FirstServeIn:   s.FirstServeIn,
		FirstServeWon:  s.FirstServeWon,
		SecondServeWon: s.SecondServeWon,
		ReturnVsFirst:  s.ReturnVsFirst,
		ReturnVsSecond: s.ReturnVsSecond,
		Matches:        src.matches / 2,
	}, true
}

// Lookup returns a player's statistics for a surface, walking the fallback chain
// surface-specific, overall, similarity-weighted, tour average and finally insufficient.
// Surface figures need the overall minimum as well, so a short career on one surface
// never outranks the player's overall record.
func (c *Corpus) Lookup(player string, surface models.Surface) StatResult {
	res := StatResult{Player: player, Surface: surface}

	if p := c.players[player]; p != nil {
		established := p.overall.matches >= c.cfg.MinMatches
		if sc := p.surface[surface]; established && sc != nil && sc.matches >= c.cfg.MinSurfaceMatches {
			res.Stats = sc.stats()
			res.Source = StatSource{Kind: SourceSurfaceSpecific, N: sc.matches}
			return res
		}
		if established {
			res.Stats = p.overall.stats()
			res.Source = StatSource{Kind: SourceOverall, N: p.overall.matches}
			return res
		}
		if stats, n := c.similar(player, p.overall.stats()); n > 0 {
			stats.Matches = p.overall.matches
			res.Stats = stats
			res.Source = StatSource{Kind: SourceSimilarityWeighted, N: n}
			return res
		}
		res.Stats.Matches = p.overall.matches
	}

	if c.cfg.AllowTourAverage {
		if tour, ok := c.TourAverages(surface); ok {
			matches := res.Stats.Matches
			res.Stats = tour.AsPlayer()
			res.Stats.Matches = matches
			res.Source = StatSource{Kind: SourceTourAverage, N: tour.Matches}
			return res
		}
	}

	res.Source = StatSource{Kind: SourceInsufficient, N: res.Stats.Matches}
	return res
}

type neighbour struct {
	player   string
	distance float64
	stats    PlayerStats
}

// similar averages the overall figures of the established players closest to a thin
// record, weighted by inverse distance. Candidates are ordered by distance then id so
// the result does not depend on map order.
func (c *Corpus) similar(player string, own PlayerStats) (PlayerStats, int) {
	k := c.cfg.SimilarityNeighbors
	if k <= 0 {
		return PlayerStats{}, 0
	}

	candidates := make([]neighbour, 0, len(c.players))
	for id, p := range c.players {
		if id == player || p.overall.matches < c.cfg.MinMatches {
			continue
		}
		s := p.overall.stats()
		candidates = append(candidates, neighbour{player: id, distance: statDistance(own, s), stats: s})
	}
	if len(candidates) == 0 {
		return PlayerStats{}, 0
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].player < candidates[j].player
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	var out PlayerStats
	total := 0.0
	for _, n := range candidates {
		w := 1 / (n.distance + 1e-6)
		out.FirstServeIn += w * n.stats.FirstServeIn
		out.FirstServeWon += w * n.stats.FirstServeWon
		out.SecondServeWon += w * n.stats.SecondServeWon
		out.ReturnVsFirst += w * n.stats.ReturnVsFirst
		out.ReturnVsSecond += w * n.stats.ReturnVsSecond
		total += w
	}
	out.FirstServeIn /= total
	out.FirstServeWon /= total
	out.SecondServeWon /= total
	out.ReturnVsFirst /= total
	out.ReturnVsSecond /= total
	return out, len(candidates)
}

func statDistance(a, b PlayerStats) float64 {
	d := [...]float64{
		a.FirstServeIn - b.FirstServeIn,
		a.FirstServeWon - b.FirstServeWon,
		a.SecondServeWon - b.SecondServeWon,
		a.ReturnVsFirst - b.ReturnVsFirst,
		a.ReturnVsSecond - b.ReturnVsSecond,
	}
	sum := 0.0
	for _, v := range d {
		sum += v * v
	}
	return math.Sqrt(sum)
}
