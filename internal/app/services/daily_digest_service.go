package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/metrics"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
)

// DailyDigestService defines the digest operations
type DailyDigestService interface {
	// Run builds and delivers the digest for every recipient of one school.
	// A report is returned whenever recipient iteration started.
	Run(ctx context.Context, schoolID int64, asOf time.Time, opts RunOptions) (*models.DeliveryReport, error)
	// RunAll runs every school with the configured defaults
	RunAll(ctx context.Context, asOf time.Time) ([]*models.DeliveryReport, error)
	// Preview composes one recipient's digest without delivering it
	Preview(ctx context.Context, schoolID, userID int64, asOf time.Time, opts RunOptions) (*models.DigestPreview, error)
}

// RunOptions overrides the configured cap and window for one run.
// Zero values fall back to DigestSettings.
type RunOptions struct {
	Cap    int
	Window time.Duration
}

// DigestSettings configures the engine
type DigestSettings struct {
	Cap                  int
	Window               time.Duration
	Workers              int
	RetryBudget          int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	SendTimeout          time.Duration
	StoreTimeout         time.Duration
	RunDeadline          time.Duration
	RatePerSecond        float64 // <= 0 disables rate limiting
	RateBurst            int
}

// DefaultDigestSettings returns the production defaults
func DefaultDigestSettings() DigestSettings {
	return DigestSettings{
		Cap:                  DefaultCap,
		Window:               DefaultWindow,
		Workers:              4,
		RetryBudget:          3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		SendTimeout:          15 * time.Second,
		StoreTimeout:         10 * time.Second,
		RunDeadline:          2 * time.Hour,
		RatePerSecond:        10,
		RateBurst:            5,
	}
}

// dailyDigestServiceImpl implements DailyDigestService
type dailyDigestServiceImpl struct {
	store    DirectoryStore
	mailer   DigestMailer
	resolver *CommunityAccessResolver
	selector *QuestionWindowSelector
	settings DigestSettings
	limiter  *rate.Limiter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDailyDigestService creates a new digest service instance
func NewDailyDigestService(store DirectoryStore, mailer DigestMailer, settings DigestSettings, lgr zerolog.Logger) DailyDigestService {
	defaults := DefaultDigestSettings()
	if settings.Cap <= 0 {
		settings.Cap = defaults.Cap
	}
	if settings.Window <= 0 {
		settings.Window = defaults.Window
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}
	if settings.RetryBudget < 0 {
		settings.RetryBudget = 0
	}
	if settings.RetryInitialInterval <= 0 {
		settings.RetryInitialInterval = defaults.RetryInitialInterval
	}
	if settings.RetryMaxInterval < settings.RetryInitialInterval {
		settings.RetryMaxInterval = settings.RetryInitialInterval
	}
	if settings.RateBurst <= 0 {
		settings.RateBurst = 1
	}

	limit := rate.Inf
	if settings.RatePerSecond > 0 {
		limit = rate.Limit(settings.RatePerSecond)
	}

	return &dailyDigestServiceImpl{
		store:    store,
		mailer:   mailer,
		resolver: NewCommunityAccessResolver(store),
		selector: NewQuestionWindowSelector(store),
		settings: settings,
		limiter:  rate.NewLimiter(limit, settings.RateBurst),
		logger:   lgr.With().Str("component", "daily_digest").Logger(),
		now:      time.Now,
	}
}

func (s *dailyDigestServiceImpl) resolveOptions(opts RunOptions) RunOptions {
	if opts.Cap <= 0 {
		opts.Cap = s.settings.Cap
	}
	if opts.Window <= 0 {
		opts.Window = s.settings.Window
	}
	return opts
}

// withStoreTimeout bounds one directory read
func (s *dailyDigestServiceImpl) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.settings.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.settings.StoreTimeout)
}

// loadSchool fetches the school and rejects it when digests cannot be
// addressed or titled.
func (s *dailyDigestServiceImpl) loadSchool(ctx context.Context, schoolID int64) (*models.School, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	school, err := s.store.GetSchool(storeCtx, schoolID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(school.Name) == "" {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("school %d has no displayable name", school.ID))
	}
	if strings.TrimSpace(school.PrimaryDomain) == "" {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("school %d does not have any primary domain, cannot send email", school.ID))
	}

	return school, nil
}

// Run implements DailyDigestService
func (s *dailyDigestServiceImpl) Run(ctx context.Context, schoolID int64, asOf time.Time, opts RunOptions) (*models.DeliveryReport, error) {
	opts = s.resolveOptions(opts)
	started := s.now()

	report := &models.DeliveryReport{
		RunID:            uuid.NewString(),
		SchoolID:         schoolID,
		AsOf:             asOf,
		FailedRecipients: []int64{},
		Unprocessed:      []int64{},
		StartedAt:        started,
	}
	lgr := s.logger.With().
		Str("runID", report.RunID).
		Int64("schoolID", schoolID).
		Time("asOf", asOf).
		Logger()

	school, err := s.loadSchool(ctx, schoolID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConfiguration) {
			lgr.Error().Err(err).Msg("School is misconfigured, digest run aborted")
			metrics.ObserveRun(metrics.RunConfigError, 0)
		} else {
			lgr.Error().Err(err).Msg("Failed to load school")
			metrics.ObserveRun(metrics.RunError, 0)
		}
		return nil, err
	}
	report.SchoolName = school.Name

	storeCtx, cancel := s.withStoreTimeout(ctx)
	recipients, err := s.store.GetRecipients(storeCtx, schoolID)
	cancel()
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to list recipients")
		metrics.ObserveRun(metrics.RunError, 0)
		return nil, fmt.Errorf("listing recipients of school %d: %w", schoolID, err)
	}

	runCtx, cancelRun := ctx, context.CancelFunc(func() {})
	if s.settings.RunDeadline > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, s.settings.RunDeadline)
	}
	defer cancelRun()

	lgr.Info().Int("recipients", len(recipients)).Int("cap", opts.Cap).Dur("window", opts.Window).Msg("Starting digest run")

	s.dispatch(runCtx, school, recipients, asOf, opts, report, lgr)

	sort.Slice(report.FailedRecipients, func(i, j int) bool { return report.FailedRecipients[i] < report.FailedRecipients[j] })
	sort.Slice(report.Unprocessed, func(i, j int) bool { return report.Unprocessed[i] < report.Unprocessed[j] })
	// recipients are only left unprocessed when the run context ended or the
	// rate limiter could not fit them before it ends
	report.DeadlineExceeded = len(report.Unprocessed) > 0
	report.FinishedAt = s.now()

	status := metrics.RunCompleted
	if report.DeadlineExceeded {
		status = metrics.RunDeadlineExceeded
	}
	metrics.ObserveRun(status, report.FinishedAt.Sub(started))

	event := lgr.Info()
	if report.Failed > 0 || report.DeadlineExceeded {
		event = lgr.Warn()
	}
	event.
		Int("sent", report.Sent).
		Int("skippedIneligible", report.SkippedIneligible).
		Int("skippedEmpty", report.SkippedEmpty).
		Int("failed", report.Failed).
		Int("alreadyDelivered", report.AlreadyDelivered).
		Int("unprocessed", len(report.Unprocessed)).
		Bool("deadlineExceeded", report.DeadlineExceeded).
		Msg("Digest run finished")

	return report, nil
}

// errNoDeliverySlot means the rate limiter cannot grant a send before the
// run context ends. The recipient was not attempted.
var errNoDeliverySlot = errors.New("no delivery slot before run deadline")

type recipientResult struct {
	userID  int64
	outcome models.DeliveryOutcome
}

// dispatch fans recipients out to a bounded worker pool. Workers only send
// results; the report is written by this goroutine alone.
func (s *dailyDigestServiceImpl) dispatch(ctx context.Context, school *models.School, recipients []models.Recipient, asOf time.Time, opts RunOptions, report *models.DeliveryReport, lgr zerolog.Logger) {
	jobs := make(chan models.Recipient)
	results := make(chan recipientResult, s.settings.Workers)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for i, rec := range recipients {
			select {
			case jobs <- rec:
			case <-ctx.Done():
				for _, rest := range recipients[i:] {
					results <- recipientResult{userID: rest.UserID, outcome: models.OutcomeUnprocessed}
				}
				return nil
			}
		}
		return nil
	})

	for i := 0; i < s.settings.Workers; i++ {
		g.Go(func() error {
			for rec := range jobs {
				results <- recipientResult{
					userID:  rec.UserID,
					outcome: s.processRecipient(ctx, school, rec, asOf, opts, lgr),
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	for res := range results {
		report.Record(res.userID, res.outcome)
		metrics.RecordRecipientOutcome(string(res.outcome))
	}
}

// processRecipient runs eligibility, resolution, selection, ranking,
// composition and delivery for one recipient. It never panics out.
func (s *dailyDigestServiceImpl) processRecipient(ctx context.Context, school *models.School, rec models.Recipient, asOf time.Time, opts RunOptions, lgr zerolog.Logger) (outcome models.DeliveryOutcome) {
	lgr = lgr.With().Int64("userID", rec.UserID).Logger()

	defer func() {
		if r := recover(); r != nil {
			lgr.Error().Interface("panic", r).Msg("Recovered from panic while processing recipient")
			outcome = models.OutcomeFailed
		}
	}()

	if ctx.Err() != nil {
		return models.OutcomeUnprocessed
	}

	if !IsEligible(rec) {
		return models.OutcomeSkippedIneligible
	}

	payload, err := s.buildPayload(ctx, school, rec, asOf, opts)
	if err != nil {
		if ctx.Err() != nil {
			return models.OutcomeUnprocessed
		}
		lgr.Error().Err(err).Msg("Failed to compose digest")
		return models.OutcomeFailed
	}

	if payload.IsEmpty() {
		lgr.Debug().Int("communities", len(payload.Communities)).Msg("Nothing to send, skipping recipient")
		return models.OutcomeSkippedEmpty
	}

	err = s.deliver(ctx, school, payload, lgr)
	switch {
	case err == nil:
		return models.OutcomeSent
	case errors.Is(err, apperrors.ErrAlreadyDelivered):
		lgr.Info().Msg("Digest already delivered for this date, not sending again")
		return models.OutcomeAlreadyDelivered
	case errors.Is(err, errNoDeliverySlot):
		lgr.Warn().Err(err).Msg("No delivery slot left in this run, recipient left unprocessed")
		return models.OutcomeUnprocessed
	case errors.Is(err, apperrors.ErrPermanentDelivery):
		lgr.Error().Err(err).Msg("Permanent delivery failure")
		return models.OutcomeFailed
	case ctx.Err() != nil:
		return models.OutcomeUnprocessed
	default:
		lgr.Error().Err(err).Int("retryBudget", s.settings.RetryBudget).Msg("Delivery failed after retries")
		return models.OutcomeFailed
	}
}

// buildPayload composes the digest with all directory reads bounded by the
// store timeout.
func (s *dailyDigestServiceImpl) buildPayload(ctx context.Context, school *models.School, rec models.Recipient, asOf time.Time, opts RunOptions) (*models.DigestPayload, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	communities, err := s.resolver.VisibleCommunities(storeCtx, rec)
	if err != nil {
		return nil, err
	}
	if len(communities) == 0 {
		return ComposeDigest(*school, rec, communities, nil, asOf), nil
	}

	candidates, err := s.selector.CandidateQuestions(storeCtx, communities, asOf, opts.Window)
	if err != nil {
		return nil, err
	}

	ranked := RankQuestions(candidates, opts.Cap)
	return ComposeDigest(*school, rec, communities, ranked, asOf), nil
}

// deliver sends the payload, retrying transient failures with exponential
// backoff up to the retry budget.
func (s *dailyDigestServiceImpl) deliver(ctx context.Context, school *models.School, payload *models.DigestPayload, lgr zerolog.Logger) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.settings.RetryInitialInterval
	expo.MaxInterval = s.settings.RetryMaxInterval
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.settings.RetryBudget)), ctx)

	attempt := func() error {
		// Wait fails early when the next slot lies past the run deadline
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", errNoDeliverySlot, err))
		}

		sendCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.settings.SendTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, s.settings.SendTimeout)
		}
		defer cancel()

		err := s.mailer.SendDigest(sendCtx, school, payload)
		switch {
		case err == nil:
			metrics.RecordDeliveryAttempt(metrics.AttemptSuccess)
			return nil
		case errors.Is(err, apperrors.ErrAlreadyDelivered):
			metrics.RecordDeliveryAttempt(metrics.AttemptDuplicate)
			return backoff.Permanent(err)
		case errors.Is(err, apperrors.ErrPermanentDelivery):
			metrics.RecordDeliveryAttempt(metrics.AttemptPermanent)
			return backoff.Permanent(err)
		default:
			metrics.RecordDeliveryAttempt(metrics.AttemptTransient)
			return err
		}
	}

	notify := func(err error, wait time.Duration) {
		lgr.Warn().Err(err).Dur("retryIn", wait).Msg("Transient delivery failure, retrying")
	}

	return backoff.RetryNotify(attempt, policy, notify)
}

// RunAll implements DailyDigestService. A failing school does not stop the
// others; it gets a report carrying the error.
func (s *dailyDigestServiceImpl) RunAll(ctx context.Context, asOf time.Time) ([]*models.DeliveryReport, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	schools, err := s.store.ListSchools(storeCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("listing schools: %w", err)
	}

	reports := make([]*models.DeliveryReport, 0, len(schools))
	for _, school := range schools {
		report, err := s.Run(ctx, school.ID, asOf, RunOptions{})
		if err != nil {
			reports = append(reports, &models.DeliveryReport{
				SchoolID:         school.ID,
				SchoolName:       school.Name,
				AsOf:             asOf,
				FailedRecipients: []int64{},
				Unprocessed:      []int64{},
				Error:            err.Error(),
			})
			continue
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// Preview implements DailyDigestService
func (s *dailyDigestServiceImpl) Preview(ctx context.Context, schoolID, userID int64, asOf time.Time, opts RunOptions) (*models.DigestPreview, error) {
	opts = s.resolveOptions(opts)

	school, err := s.loadSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := s.withStoreTimeout(ctx)
	rec, err := s.store.GetRecipient(storeCtx, schoolID, userID)
	cancel()
	if err != nil {
		return nil, err
	}

	payload, err := s.buildPayload(ctx, school, *rec, asOf, opts)
	if err != nil {
		return nil, err
	}

	return &models.DigestPreview{Payload: payload, Eligible: IsEligible(*rec)}, nil
}
