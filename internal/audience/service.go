package audience

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"audience/internal/constants"
	"audience/internal/logger"
	pkgerrors "audience/pkg/errors"
	"audience/pkg/metrics"
	"audience/pkg/tracing"
)

// Compilation is a validated rule set together with the filter it compiles to.
type Compilation struct {
	Rules      []Rule
	Conditions []Condition
	Filter     Filter
	Policy     string
	// Collapsed is set when an OR tag made the legacy policy keep only the
	// first condition.
	Collapsed bool
}

type Service struct {
	store        Store
	combiner     Combiner
	collection   string
	queryTimeout time.Duration
	logger       logger.Logger
}

type ServiceOption func(*Service)

func WithCombiner(c Combiner) ServiceOption {
	return func(s *Service) {
		s.combiner = c
	}
}

func WithCollection(name string) ServiceOption {
	return func(s *Service) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithQueryTimeout bounds each store query. Zero disables the bound.
func WithQueryTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.queryTimeout = d
	}
}

func NewService(store Store, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:        store,
		combiner:     LegacyCombiner{},
		collection:   constants.DefaultCollection,
		queryTimeout: constants.DefaultQueryTimeout,
		logger:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile validates raw rules and builds the store filter without querying.
func (s *Service) Compile(ctx context.Context, raw interface{}) (*Compilation, error) {
	ctx, span := tracing.StartSpan(ctx, "audience.compile")
	defer span.End()

	start := time.Now()
	comp, err := s.compile(raw)
	if err != nil {
		metrics.ObserveCompileDuration(time.Since(start), "error")
		tracing.Fail(span, err, "compile failed")
		return nil, err
	}
	metrics.ObserveCompileDuration(time.Since(start), "success")

	span.SetAttributes(
		attribute.Int("audience.rules", len(comp.Rules)),
		attribute.String("audience.policy", comp.Policy),
		attribute.Bool("audience.collapsed", comp.Collapsed),
	)

	if comp.Collapsed {
		metrics.IncOrCollapse()
	}
	s.logger.DebugwCtx(ctx, "Compiled audience filter",
		"rules", len(comp.Rules),
		"policy", comp.Policy,
		"collapsed", comp.Collapsed,
	)

	return comp, nil
}

func (s *Service) compile(raw interface{}) (*Compilation, error) {
	rules, err := ValidateRules(raw)
	if err != nil {
		return nil, err
	}
	metrics.ObserveRulesPerRequest(len(rules))

	conditions, err := BuildConditions(rules)
	if err != nil {
		return nil, err
	}

	filter, err := s.combiner.Combine(conditions)
	if err != nil {
		return nil, err
	}

	return &Compilation{
		Rules:      rules,
		Conditions: conditions,
		Filter:     filter,
		Policy:     s.combiner.Policy(),
		Collapsed:  s.combiner.Policy() == constants.CombinePolicyLegacy && len(conditions) > 1 && HasOr(conditions),
	}, nil
}

// GetAudienceSize counts the customers matching raw rules. Validation and
// build failures are returned as is; any store failure is logged and
// reported as QueryExecutionFailed.
func (s *Service) GetAudienceSize(ctx context.Context, raw interface{}) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "audience.get_size")
	defer span.End()

	comp, err := s.Compile(ctx, raw)
	if err != nil {
		metrics.IncAudienceRequest("rejected")
		tracing.Fail(span, nil, "invalid rules")
		return 0, err
	}

	count, err := s.count(ctx, comp.Filter)
	if err != nil {
		metrics.IncAudienceRequest("failed")
		tracing.Fail(span, err, "count failed")
		s.logger.ErrorwCtx(ctx, "Error querying audience size",
			"error", err,
			"collection", s.collection,
			"store", s.store.Name(),
		)
		return 0, pkgerrors.Wrap(err, pkgerrors.ErrQueryExecutionFailed)
	}

	metrics.IncAudienceRequest("success")
	span.SetAttributes(attribute.Int64("audience.size", count))
	return count, nil
}

func (s *Service) count(ctx context.Context, filter Filter) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "audience.count",
		attribute.String("db.system", s.store.Name()),
		attribute.String("db.collection", s.collection),
	)
	defer span.End()

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	count, err := s.store.CountMatching(ctx, s.collection, filter)
	metrics.ObserveQueryDuration(s.store.Name(), time.Since(start))
	return count, err
}

func (s *Service) Policy() string {
	return s.combiner.Policy()
}
