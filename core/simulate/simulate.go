// Package simulate generates synthetic watch-event logs with realistic
// engagement structure: a tiered video catalog, per-viewer activity
// propensity, weekday/weekend rhythm and completion behavior tied to
// content popularity. Given the same seed and start date the output is
// byte-for-byte reproducible.
package simulate

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/huangsam/rewatch/schema"
)

// Default generation parameters.
const (
	DefaultViewers  = 2000
	DefaultDays     = 30
	DefaultCatalog  = 500
	DefaultCreators = 50
	DefaultSeed     = 42
)

// baseActivity is the mean probability that a viewer opens the app on a
// given day. Individual propensities are drawn around this mean.
const baseActivity = 0.35

// weekendBoost lifts weekend activity relative to weekdays.
const weekendBoost = 1.25

// completedThreshold marks a play as completed once the watched share
// reaches it.
const completedThreshold = 0.9

// Options control one generation run.
type Options struct {
	Seed       uint64
	Viewers    int
	Days       int
	Catalog    int
	Creators   int
	StartDate  time.Time // zero selects Days before today (UTC midnight)
	EventsPath string
	VideosPath string
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.Viewers <= 0 {
		o.Viewers = DefaultViewers
	}
	if o.Days <= 0 {
		o.Days = DefaultDays
	}
	if o.Catalog <= 0 {
		o.Catalog = DefaultCatalog
	}
	if o.Creators <= 0 {
		o.Creators = DefaultCreators
	}
	if o.StartDate.IsZero() {
		o.StartDate = schema.TruncateDay(time.Now().UTC()).AddDate(0, 0, -o.Days)
	} else {
		o.StartDate = schema.TruncateDay(o.StartDate)
	}
	return o
}

// Summary reports what one generation run produced.
type Summary struct {
	Events     int
	Viewers    int
	Sessions   int
	Videos     int
	Days       int
	StartDate  time.Time
	EventsPath string
	VideosPath string
}

// Generator produces one deterministic event log.
type Generator struct {
	opts    Options
	rng     *rand.Rand
	catalog []catalogEntry
	cum     []float64 // cumulative popularity weights over the catalog
	total   float64
}

// NewGenerator seeds a generator. The second PCG word is a fixed constant
// so a single --seed value pins the whole stream.
func NewGenerator(opts Options) *Generator {
	opts = opts.withDefaults()
	g := &Generator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, 0x72657761746368)),
	}
	g.buildCatalog()
	return g
}

// Generate walks every viewer through every day of the window and returns
// the accumulated events plus a run summary. Events come out in generation
// order, which is viewer-major and chronological per viewer; the pipeline
// neither needs nor assumes global time order.
func (g *Generator) Generate() ([]schema.WatchEvent, Summary) {
	var events []schema.WatchEvent
	var sessions int

	// Per-viewer stickiness with population mean baseActivity.
	const concentration = 10
	propensity := distuv.Beta{
		Alpha: baseActivity * concentration,
		Beta:  (1 - baseActivity) * concentration,
		Src:   g.rng,
	}

	for v := range g.opts.Viewers {
		viewerID := fmt.Sprintf("viewer-%05d", v+1)
		joinDay := g.rng.IntN(g.opts.Days)
		stickiness := propensity.Rand()

		for day := joinDay; day < g.opts.Days; day++ {
			date := g.opts.StartDate.AddDate(0, 0, day)
			if day != joinDay && !g.activeOn(date, stickiness) {
				continue
			}

			for range 1 + g.rng.IntN(3) {
				sessions++
				events = append(events, g.session(viewerID, date)...)
			}
		}
	}

	summary := Summary{
		Events:     len(events),
		Viewers:    g.opts.Viewers,
		Sessions:   sessions,
		Videos:     len(g.catalog),
		Days:       g.opts.Days,
		StartDate:  g.opts.StartDate,
		EventsPath: g.opts.EventsPath,
		VideosPath: g.opts.VideosPath,
	}
	return events, summary
}

// activeOn draws the viewer's daily activity with the weekend boost.
func (g *Generator) activeOn(date time.Time, stickiness float64) bool {
	p := stickiness
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		p *= weekendBoost
	}
	return g.rng.Float64() < min(p, 0.95)
}

// session emits 1-5 plays starting at a random hour of the day. Gaps
// between plays stay well under the default inactivity threshold.
func (g *Generator) session(viewerID string, date time.Time) []schema.WatchEvent {
	at := date.Add(time.Duration(6+g.rng.IntN(17)) * time.Hour).
		Add(time.Duration(g.rng.IntN(3600)) * time.Second)

	plays := 1 + g.rng.IntN(5)
	events := make([]schema.WatchEvent, 0, plays)
	for range plays {
		video := g.pickVideo()
		completion := video.tier.completion(g.rng)
		watch := completion * video.DurationSeconds

		events = append(events, schema.WatchEvent{
			ViewerID:      viewerID,
			VideoID:       video.VideoID,
			CreatorID:     video.CreatorID,
			EventTime:     at,
			WatchSeconds:  roundTenth(watch),
			VideoDuration: roundTenth(video.DurationSeconds),
			Completed:     completion >= completedThreshold,
		})

		// Advance past the play plus a short browse pause.
		at = at.Add(time.Duration(watch)*time.Second + time.Duration(5+g.rng.IntN(115))*time.Second)
	}
	return events
}

// pickVideo draws from the catalog proportionally to tier weight.
func (g *Generator) pickVideo() *catalogEntry {
	r := g.rng.Float64() * g.total
	i := sort.Search(len(g.cum), func(i int) bool { return g.cum[i] > r })
	if i >= len(g.catalog) {
		i = len(g.catalog) - 1
	}
	entry := &g.catalog[i]
	entry.Views++
	return entry
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
