package simulate

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// catalogEntry is one simulated video. Views accumulate while events are
// generated so the sidecar reflects actual simulated demand.
type catalogEntry struct {
	VideoID         string
	CreatorID       string
	PublishTime     time.Time
	DurationSeconds float64
	Views           int64
	tier            popularityTier
}

// popularityTier groups videos by demand. Weight drives how often a tier's
// videos are picked; completionMean anchors the Beta draw for watch depth.
type popularityTier struct {
	name           string
	share          float64 // fraction of the catalog in this tier
	weight         float64 // relative pick weight per video
	completionMean float64
}

var popularityTiers = []popularityTier{
	{name: "head", share: 0.10, weight: 8, completionMean: 0.85},
	{name: "mid", share: 0.30, weight: 3, completionMean: 0.70},
	{name: "tail", share: 0.60, weight: 1, completionMean: 0.55},
}

// completion draws a watch depth around the tier mean.
func (t popularityTier) completion(src rand.Source) float64 {
	const concentration = 10
	dist := distuv.Beta{
		Alpha: t.completionMean * concentration,
		Beta:  (1 - t.completionMean) * concentration,
		Src:   src,
	}
	return dist.Rand()
}

// buildCatalog lays out the video catalog: lognormal durations clamped to
// [5s, 300s], creators assigned round-robin, tiers assigned by catalog
// position so the head of the catalog is the popular slice.
func (g *Generator) buildCatalog() {
	duration := distuv.LogNormal{Mu: 3.8, Sigma: 0.9, Src: g.rng}

	g.catalog = make([]catalogEntry, g.opts.Catalog)
	g.cum = make([]float64, g.opts.Catalog)

	for i := range g.catalog {
		d := min(max(duration.Rand(), 5), 300)
		g.catalog[i] = catalogEntry{
			VideoID:         fmt.Sprintf("video-%04d", i+1),
			CreatorID:       fmt.Sprintf("creator-%03d", i%g.opts.Creators+1),
			PublishTime:     g.opts.StartDate.AddDate(0, 0, -(1 + g.rng.IntN(90))),
			DurationSeconds: d,
			tier:            tierFor(i, g.opts.Catalog),
		}
		g.total += g.catalog[i].tier.weight
		g.cum[i] = g.total
	}
}

// tierFor maps a catalog position to its popularity tier.
func tierFor(index, catalogSize int) popularityTier {
	position := float64(index) / float64(catalogSize)
	var cutoff float64
	for _, t := range popularityTiers {
		cutoff += t.share
		if position < cutoff {
			return t
		}
	}
	return popularityTiers[len(popularityTiers)-1]
}
