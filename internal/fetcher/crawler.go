package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/frontier"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
	"github.com/jonesrussell/north-cloud/curator/internal/metrics"
)

const defaultConcurrency = 4

var errRobotsDisallowed = errors.New("disallowed by robots.txt")

// PageFetcher fetches one URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error)
}

// RobotsPolicy is consulted before every fetch.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL string) (bool, error)
	CrawlDelayer
}

// Reporter receives discovery counts and per-URL outcomes. Every fetched URL
// gets exactly one ReportOutcome call.
type Reporter interface {
	ReportDiscovered(ctx context.Context, jobID string, urls []string) error
	ReportOutcome(ctx context.Context, jobID, pageURL string, outcome domain.Outcome) error
}

// ItemHandler turns a successful item fetch into its final outcome, e.g. by
// running it through the quality pipeline.
type ItemHandler interface {
	HandleItem(ctx context.Context, job *domain.Job, pageURL string, outcome domain.Outcome) domain.Outcome
}

// CrawlerConfig holds defaults applied when a job does not set its own.
type CrawlerConfig struct {
	DefaultConcurrency int
	DefaultDelay       time.Duration
	RespectRobots      bool
}

// Crawler runs jobs breadth-first over their frontier.
type Crawler struct {
	fetcher PageFetcher
	robots  RobotsPolicy
	store   frontier.Store
	handler ItemHandler
	metrics *metrics.Metrics
	log     logger.Logger
	cfg     CrawlerConfig
}

// NewCrawler creates a crawler. robots, handler and m may be nil.
func NewCrawler(
	f PageFetcher,
	robots RobotsPolicy,
	store frontier.Store,
	handler ItemHandler,
	m *metrics.Metrics,
	log logger.Logger,
	cfg CrawlerConfig,
) *Crawler {
	if cfg.DefaultConcurrency <= 0 {
		cfg.DefaultConcurrency = defaultConcurrency
	}
	return &Crawler{
		fetcher: f,
		robots:  robots,
		store:   store,
		handler: handler,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// RunParams describes one execution of a job attempt.
type RunParams struct {
	Job      *domain.Job
	Control  *Control
	Reporter Reporter
	// Visited lists URLs already fetched in this attempt (resume after restart).
	Visited []string
}

// Result summarizes a run for the job manager.
type Result struct {
	Seeds        int
	SeedFailures int
	Fetched      int
	Stopped      bool
}

// Run crawls until the frontier is exhausted to the job's depth, the control
// is stopped, or ctx is cancelled. Per-URL errors never end the run; only a
// reporter error does.
func (c *Crawler) Run(ctx context.Context, p RunParams) (*Result, error) {
	job := p.Job

	filter, err := frontier.NewKindFilter(job.ContentTypeFilters)
	if err != nil {
		return nil, err
	}

	fr := frontier.New(job.ID, c.store)
	if loadErr := fr.Load(ctx); loadErr != nil {
		return nil, loadErr
	}
	fr.RestoreVisited(p.Visited)

	r := &run{
		crawler:  c,
		job:      job,
		ctl:      p.Control,
		reporter: p.Reporter,
		frontier: fr,
		filter:   filter,
		hosts:    seedHosts(job.TargetURLs),
		log:      c.log.With(logger.JobID(job.ID)),
		result:   &Result{},
	}
	r.polite = NewPoliteness(r.delay(), c.robots)

	if seedErr := r.seed(ctx); seedErr != nil {
		return r.result, seedErr
	}

	for depth := 0; depth <= job.ScrapingDepth; depth++ {
		level := fr.Level(depth)
		if len(level) == 0 {
			if depth > fr.MaxDepth() {
				break
			}
			continue
		}

		r.log.Debug("Crawling level", logger.Int("depth", depth), logger.Int("urls", len(level)))
		if levelErr := r.runLevel(ctx, level, depth); levelErr != nil {
			return r.result, levelErr
		}
		if p.Control.Stopped() || ctx.Err() != nil {
			r.result.Stopped = true
			return r.result, nil
		}
	}

	return r.result, nil
}

type run struct {
	crawler  *Crawler
	job      *domain.Job
	ctl      *Control
	reporter Reporter
	frontier *frontier.Frontier
	filter   frontier.KindFilter
	polite   *Politeness
	hosts    map[string]struct{}
	log      logger.Logger

	mu     sync.Mutex
	result *Result
}

func (r *run) concurrency() int {
	if n := r.job.Options.MaxConcurrency; n > 0 {
		return n
	}
	return r.crawler.cfg.DefaultConcurrency
}

func (r *run) delay() time.Duration {
	if d := r.job.Options.PolitenessDelay(); d > 0 {
		return d
	}
	return r.crawler.cfg.DefaultDelay
}

func (r *run) seed(ctx context.Context) error {
	canDescend := r.job.ScrapingDepth > 0
	seeds := make([]string, 0, len(r.job.TargetURLs))
	for _, u := range r.job.TargetURLs {
		if r.filter.Decide(u, canDescend) == frontier.Ignore {
			r.log.Warn("Seed excluded by content type filter", logger.URL(u))
			continue
		}
		seeds = append(seeds, u)
	}

	r.result.Seeds = len(seeds)
	return r.discover(ctx, seeds, 0, false)
}

// discover adds urls at depth and reports the new collectible ones as found.
func (r *run) discover(ctx context.Context, urls []string, depth int, checkHost bool) error {
	canDescend := depth < r.job.ScrapingDepth
	keep := make([]string, 0, len(urls))
	for _, u := range urls {
		if checkHost && r.job.Options.SameHost() && !r.sameHost(u) {
			continue
		}
		if r.filter.Decide(u, canDescend) == frontier.Ignore {
			continue
		}
		keep = append(keep, u)
	}
	if limit := r.job.Options.MaxPages; limit > 0 {
		room := limit - r.frontier.KnownCount()
		if room <= 0 {
			return nil
		}
		if len(keep) > room {
			keep = keep[:room]
		}
	}

	added, err := r.frontier.Add(ctx, keep, depth)
	if err != nil {
		return err
	}

	found := make([]string, 0, len(added))
	for _, e := range added {
		if r.filter.Decide(e.URL, canDescend) == frontier.Collect {
			found = append(found, e.URL)
		}
	}
	if len(found) == 0 {
		return nil
	}
	if reportErr := r.reporter.ReportDiscovered(ctx, r.job.ID, found); reportErr != nil {
		return fmt.Errorf("report discovered: %w", reportErr)
	}
	return nil
}

func (r *run) sameHost(rawURL string) bool {
	host, err := frontier.ExtractHost(rawURL)
	if err != nil {
		return false
	}
	_, ok := r.hosts[host]
	return ok
}

func (r *run) runLevel(ctx context.Context, level []domain.FrontierEntry, depth int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())

	for _, entry := range level {
		if !r.ctl.Proceed(gctx) {
			break
		}
		g.Go(func() error {
			return r.visit(gctx, entry, depth)
		})
	}
	return g.Wait()
}

func (r *run) visit(ctx context.Context, entry domain.FrontierEntry, depth int) error {
	if !r.ctl.Proceed(ctx) {
		return nil
	}

	canDescend := depth < r.job.ScrapingDepth
	decision := r.filter.Decide(entry.URL, canDescend)
	if decision == frontier.Ignore {
		return nil
	}

	if blocked := r.robotsBlocked(ctx, entry.URL); blocked {
		if !r.frontier.Visit(entry.URLHash) {
			return nil
		}
		outcome := domain.Skipped(domain.SkipRobots)
		if decision == frontier.DiscoverOnly {
			outcome = domain.Skipped(domain.SkipDiscoveryOnly)
		}
		outcome.Err = errRobotsDisallowed
		return r.report(ctx, entry.URL, outcome)
	}

	host, _ := frontier.ExtractHost(entry.URL)
	if err := r.polite.Wait(ctx, host); err != nil {
		return nil //nolint:nilerr // cancelled while waiting, nothing was fetched
	}
	// Pause may have arrived while waiting for the host slot.
	if !r.ctl.Proceed(ctx) {
		return nil
	}
	if !r.frontier.Visit(entry.URLHash) {
		return nil
	}

	outcome, links := r.fetch(ctx, entry.URL, decision, canDescend)
	// The fetch completed, so its result is settled even if ctx is cancelled now.
	settled := context.WithoutCancel(ctx)

	if depth == 0 && outcome.Err != nil {
		var fe *domain.FetchError
		if errors.As(outcome.Err, &fe) {
			r.mu.Lock()
			r.result.SeedFailures++
			r.mu.Unlock()
		}
	}

	if canDescend && len(links) > 0 {
		if err := r.discover(settled, links, depth+1, true); err != nil {
			return err
		}
	}

	if outcome.Kind == domain.OutcomeSuccess && r.crawler.handler != nil {
		outcome = r.crawler.handler.HandleItem(settled, r.job, entry.URL, outcome)
	}
	return r.report(settled, entry.URL, outcome)
}

func (r *run) robotsBlocked(ctx context.Context, rawURL string) bool {
	if !r.crawler.cfg.RespectRobots || r.crawler.robots == nil {
		return false
	}
	allowed, err := r.crawler.robots.IsAllowed(ctx, rawURL)
	if err != nil {
		r.log.Debug("Robots check failed, allowing", logger.URL(rawURL), logger.Error(err))
		return false
	}
	return !allowed
}

// fetch performs the request with a context that ignores cancellation so an
// in-flight fetch always completes and is reported.
func (r *run) fetch(
	ctx context.Context,
	rawURL string,
	decision frontier.Decision,
	canDescend bool,
) (domain.Outcome, []string) {
	start := time.Now()
	resp, err := r.crawler.fetcher.Fetch(context.WithoutCancel(ctx), rawURL, r.job.Options.ExtraHeaders)

	r.mu.Lock()
	r.result.Fetched++
	r.mu.Unlock()

	if err != nil {
		r.crawler.metrics.ObserveFetch("error", time.Since(start))
		if decision == frontier.DiscoverOnly {
			outcome := domain.Skipped(domain.SkipDiscoveryOnly)
			outcome.Err = err
			return outcome, nil
		}
		return domain.Failure(err), nil
	}

	kind, known := frontier.KindOfMediaType(resp.ContentType)
	if !known {
		kind, known = frontier.KindOf(rawURL)
	}
	r.crawler.metrics.ObserveFetch(string(kind), time.Since(start))

	var links []string
	if canDescend && kind == domain.ContentKindHTML {
		base := resp.FinalURL
		if base == "" {
			base = rawURL
		}
		extracted, linkErr := ExtractLinks(base, resp.Body)
		if linkErr != nil {
			r.log.Debug("Link extraction failed", logger.URL(rawURL), logger.Error(linkErr))
		}
		links = extracted
	}

	var outcome domain.Outcome
	switch {
	case decision == frontier.DiscoverOnly:
		outcome = domain.Skipped(domain.SkipDiscoveryOnly)
	case !known || !r.filter.Allows(kind):
		outcome = domain.Skipped(domain.SkipContentMismatch)
	default:
		outcome = domain.Success(resp.Body, string(kind))
	}
	outcome.ContentType = string(kind)
	outcome.SizeBytes = int64(len(resp.Body))
	return outcome, links
}

func (r *run) report(ctx context.Context, rawURL string, outcome domain.Outcome) error {
	r.crawler.metrics.FetchOutcome(string(outcome.Kind), outcomeReason(outcome))
	if err := r.reporter.ReportOutcome(ctx, r.job.ID, rawURL, outcome); err != nil {
		return fmt.Errorf("report outcome for %s: %w", rawURL, err)
	}
	return nil
}

func outcomeReason(o domain.Outcome) string {
	if o.Reason != "" {
		return o.Reason
	}
	var fe *domain.FetchError
	if errors.As(o.Err, &fe) {
		return string(fe.Kind)
	}
	var ee *domain.ExtractionError
	if errors.As(o.Err, &ee) {
		return string(ee.Reason)
	}
	return ""
}

func seedHosts(seeds []string) map[string]struct{} {
	hosts := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if h, err := frontier.ExtractHost(s); err == nil {
			hosts[h] = struct{}{}
		}
	}
	return hosts
}
