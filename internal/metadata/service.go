package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/justyntemme/aladinkr/internal/fetch"
)

// DefaultTimeout bounds every fetch made by the pipeline
const DefaultTimeout = 30 * time.Second

var errNoCandidates = errors.New("no candidates")

// Service orchestrates identify and cover lookups against the catalog
type Service struct {
	fetcher   Fetcher
	cache     CoverCache
	override  PageOverride
	baseURL   string
	timeout   time.Duration
	scheduler *Scheduler
	tieBreak  func(IdentifyRequest) TieBreaker
	logger    *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBaseURL points the service at another catalog host
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

// WithTimeout sets the per-fetch timeout
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStagger sets the delay between worker launches
func WithStagger(d time.Duration) Option {
	return func(s *Service) {
		s.scheduler.Stagger = d
	}
}

// WithPageOverride sets where saved copies of restricted pages come from
func WithPageOverride(o PageOverride) Option {
	return func(s *Service) {
		s.override = o
	}
}

// WithTieBreaker replaces the ordering applied to results of equal relevance
func WithTieBreaker(f func(IdentifyRequest) TieBreaker) Option {
	return func(s *Service) {
		if f != nil {
			s.tieBreak = f
		}
	}
}

// NewService creates a service fetching through fetcher. A nil cache uses
// an in-memory one.
func NewService(fetcher Fetcher, cache CoverCache, opts ...Option) *Service {
	if cache == nil {
		cache = NewMemoryCoverCache()
	}
	s := &Service{
		fetcher:   fetcher,
		cache:     cache,
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		scheduler: &Scheduler{Stagger: DefaultStagger},
		tieBreak:  MatchQuality,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookURL returns the detail page URL for identifiers naming a catalog item
func (s *Service) BookURL(identifiers map[string]string) (string, bool) {
	id := catalogID(identifiers)
	if id == "" {
		return "", false
	}
	return ItemURL(s.baseURL, id), true
}

// Identify searches the catalog and sends one record per matching item to
// results as workers finish. Failures of individual items are logged and
// omitted. It returns ErrInsufficientMetadata when req holds nothing to
// search for, the fetch error when the search page itself cannot be
// loaded, and ctx.Err() when cancelled.
func (s *Service) Identify(ctx context.Context, req IdentifyRequest, results chan<- *MetadataRecord) error {
	candidates, err := s.findCandidatesWithRetry(ctx, req)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(candidates) == 0 {
		s.logger.Info("no matches found", "title", req.Title)
		return nil
	}

	emit := func(o Outcome) {
		if o.Err != nil {
			s.logger.Error("failed to extract details", "catalog_id", o.CatalogID, "error", o.Err)
			return
		}
		select {
		case results <- o.Record:
		case <-ctx.Done():
		}
	}
	return s.scheduler.Run(ctx, candidates, s.extract, emit)
}

// IdentifyAll runs Identify and returns every record, ranked
func (s *Service) IdentifyAll(ctx context.Context, req IdentifyRequest) ([]*MetadataRecord, error) {
	results := make(chan *MetadataRecord)
	collected := make(chan []*MetadataRecord)
	go func() {
		var records []*MetadataRecord
		for rec := range results {
			records = append(records, rec)
		}
		collected <- records
	}()

	err := s.Identify(ctx, req, results)
	close(results)
	records := <-collected

	return Ranker{TieBreak: s.tieBreak(req)}.Rank(records), err
}

// extract runs one worker with its own fetcher
func (s *Service) extract(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
	e := &Extractor{
		baseURL:  s.baseURL,
		fetcher:  s.workerFetcher(),
		cache:    s.cache,
		override: s.override,
		timeout:  s.timeout,
		logger:   s.logger,
	}
	return e.Extract(ctx, c, relevance)
}

func (s *Service) workerFetcher() Fetcher {
	if c, ok := s.fetcher.(*fetch.Client); ok {
		return c.Clone()
	}
	return s.fetcher
}

// findCandidatesWithRetry repeats an identifier search that found nothing
// once, using only title and authors
func (s *Service) findCandidatesWithRetry(ctx context.Context, req IdentifyRequest) ([]Candidate, error) {
	var found []Candidate
	attempt := req
	err := retry.Do(
		func() error {
			candidates, err := s.findCandidates(ctx, attempt)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			found = candidates
			if len(candidates) == 0 && attempt.retryableWithoutIdentifiers() && ctx.Err() == nil {
				s.logger.Info("no matches for identifiers, retrying with title and authors only")
				attempt = IdentifyRequest{Title: req.Title, Authors: req.Authors}
				return errNoCandidates
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, errNoCandidates) {
		return nil, nil
	}
	return found, err
}

func (s *Service) findCandidates(ctx context.Context, req IdentifyRequest) ([]Candidate, error) {
	if candidates := CandidatesFromIdentifiers(req.Identifiers); candidates != nil {
		return candidates, nil
	}

	query, err := BuildQuery(s.baseURL, req)
	if err != nil {
		s.logger.Error("insufficient metadata to construct query")
		return nil, err
	}

	s.logger.Info("searching catalog", "url", query)
	raw, err := s.get(ctx, query, nil)
	if err != nil {
		s.logger.Error("failed to fetch search results", "url", query, "error", err)
		return nil, err
	}
	return ParseSearchResults(raw)
}

// DownloadCover returns the cover image for req. A cached cover URL is used
// when the identifiers lead to one; otherwise the book is identified first.
// ErrNoCover is returned when no cover can be found or fetched.
func (s *Service) DownloadCover(ctx context.Context, req IdentifyRequest) ([]byte, error) {
	coverURL := s.cachedCoverURL(req.Identifiers)
	if coverURL == "" {
		s.logger.Info("no cached cover found, running identify")
		records, err := s.IdentifyAll(ctx, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			s.logger.Warn("identify failed during cover lookup", "error", err)
		}
		for _, rec := range records {
			if coverURL = s.cachedCoverURL(rec.Identifiers); coverURL != "" {
				break
			}
		}
	}
	if coverURL == "" {
		s.logger.Info("no cover found")
		return nil, ErrNoCover
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("downloading cover", "url", coverURL)
	data, err := s.get(ctx, coverURL, nil)
	if err != nil {
		s.logger.Error("failed to download cover", "url", coverURL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoCover, err)
	}
	return data, nil
}

// cachedCoverURL resolves a cover URL from the catalog id, or from an ISBN
// previously mapped to one
func (s *Service) cachedCoverURL(identifiers map[string]string) string {
	id := catalogID(identifiers)
	if id == "" {
		if isbn := normalizeISBN(identifiers[IdentifierISBN]); isbn != "" {
			var err error
			if id, err = s.cache.CatalogIDForISBN(isbn); err != nil {
				s.logger.Warn("isbn lookup failed", "isbn", isbn, "error", err)
			}
		}
	}
	if id == "" {
		return ""
	}
	coverURL, err := s.cache.CoverURL(id)
	if err != nil {
		s.logger.Warn("cover cache lookup failed", "catalog_id", id, "error", err)
		return ""
	}
	return coverURL
}

func (s *Service) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.fetcher.Fetch(ctx, url, header)
}
