package catalog

import (
	"context"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Catalog cache lookups by outcome.",
	}, []string{"outcome"})
	upstreamFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_upstream_failures_total",
		Help: "Failed calls to the external catalog source.",
	})
)

// Source is the external catalog the resolver falls back to on a miss.
type Source interface {
	Sections(ctx context.Context, school, courseNumber string) ([]Section, error)
}

// Resolver answers course-title lookups, cache first.
type Resolver struct {
	cache  Cache
	source Source
}

// NewResolver creates a resolver.
func NewResolver(cache Cache, source Source) *Resolver {
	return &Resolver{cache: cache, source: source}
}

// Lookup returns the sections for one course, consulting the cache
// before the external source. A cache infrastructure error degrades to a
// miss rather than failing the lookup; a successful upstream fetch is
// cached best-effort.
func (r *Resolver) Lookup(ctx context.Context, school, courseNumber string) ([]Section, error) {
	sections, hit, err := r.cache.GetSections(ctx, school, courseNumber)
	if err != nil {
		log.Printf("catalog cache read failed for %s %s: %v", school, courseNumber, err)
	} else if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return sections, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	sections, err = r.source.Sections(ctx, school, courseNumber)
	if err != nil {
		upstreamFailures.Inc()
		return nil, err
	}
	if err := r.cache.PutSections(ctx, school, courseNumber, sections); err != nil {
		log.Printf("catalog cache write failed for %s %s: %v", school, courseNumber, err)
	}
	return sections, nil
}

// BatchResult is one title's outcome inside a batch lookup.
type BatchResult struct {
	Title    Title
	Sections []Section
	Err      error
}

// LookupBatch resolves raw titles concurrently. Titles that fail to
// parse are dropped before fan-out; the rest are looked up independently
// and collected in input order, so one title's latency or failure never
// disturbs its siblings.
func (r *Resolver) LookupBatch(ctx context.Context, rawTitles []string) []BatchResult {
	var titles []Title
	for _, raw := range rawTitles {
		if title, ok := ParseTitle(raw); ok {
			titles = append(titles, title)
		}
	}

	results := make([]BatchResult, len(titles))
	var wg sync.WaitGroup
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title Title) {
			defer wg.Done()
			sections, err := r.Lookup(ctx, title.School, title.CourseNumber)
			results[i] = BatchResult{Title: title, Sections: sections, Err: err}
		}(i, title)
	}
	wg.Wait()
	return results
}

// CoursesFor expands a CRN list into cached sections for display. CRNs
// without a cache entry are skipped; enrollment truth lives in the
// roster, not here.
func (r *Resolver) CoursesFor(ctx context.Context, crns []int) []Section {
	var sections []Section
	for _, crn := range crns {
		sec, ok, err := r.cache.GetByCRN(ctx, crn)
		if err != nil {
			log.Printf("catalog cache read failed for crn %d: %v", crn, err)
			continue
		}
		if ok {
			sections = append(sections, sec)
		}
	}
	return sections
}
