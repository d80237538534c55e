package audience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"audience/internal/config"
	"audience/internal/logger"
	pkgerrors "audience/pkg/errors"
)

type storeMock struct{ mock.Mock }

func (s *storeMock) CountMatching(ctx context.Context, collection string, filter Filter) (int64, error) {
	args := s.Called(ctx, collection, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (s *storeMock) Name() string {
	return "mock"
}

func TestService_GetAudienceSize(t *testing.T) {
	store := new(storeMock)
	store.On("CountMatching", mock.Anything, "customers", mock.AnythingOfType("audience.And")).
		Return(int64(42), nil).Once()

	svc := NewService(store, logger.NopLogger())

	size, err := svc.GetAudienceSize(context.Background(), []interface{}{
		rule("visits", ">", "5", "AND"),
		rule("total_spends", ">=", "100", "AND"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
	store.AssertExpectations(t)
}

func TestService_PassesCombinedFilter(t *testing.T) {
	store := new(storeMock)
	var got Filter
	store.On("CountMatching", mock.Anything, "shoppers", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(Filter) }).
		Return(int64(1), nil)

	svc := NewService(store, logger.NopLogger(), WithCollection("shoppers"))

	_, err := svc.GetAudienceSize(context.Background(), []interface{}{
		rule("visits", ">", "5", "AND"),
		rule("total_spends", "<", 10, "OR"),
	})
	require.NoError(t, err)

	first, err := BuildCondition(Rule{Field: "visits", Operator: OpGreater, Value: "5", Condition: LogicAnd})
	require.NoError(t, err)
	assert.Equal(t, first.BSON(), got.BSON())
}

func TestService_RejectsBeforeQuerying(t *testing.T) {
	tests := []struct {
		name  string
		raw   interface{}
		check func(error) bool
	}{
		{name: "not a sequence", raw: "rules", check: pkgerrors.IsInvalidInput},
		{name: "empty sequence", raw: []interface{}{}, check: pkgerrors.IsInvalidInput},
		{name: "missing property", raw: []interface{}{map[string]interface{}{"field": "visits"}}, check: pkgerrors.IsInvalidInput},
		{name: "unsupported operator", raw: []interface{}{rule("visits", "~", 1, "AND")}, check: pkgerrors.IsUnsupportedOperator},
		{name: "bad number", raw: []interface{}{rule("visits", ">", "lots", "AND")}, check: pkgerrors.IsInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(storeMock)
			svc := NewService(store, logger.NopLogger())

			_, err := svc.GetAudienceSize(context.Background(), tt.raw)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			store.AssertNotCalled(t, "CountMatching", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_StoreFailure(t *testing.T) {
	cause := errors.New("connection reset by peer")

	store := new(storeMock)
	store.On("CountMatching", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), cause)

	core, logs := observer.New(zap.ErrorLevel)
	svc := NewService(store, logger.NewWithCore(core))

	_, err := svc.GetAudienceSize(context.Background(), []interface{}{rule("visits", ">", 1, "AND")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsQueryExecutionFailed(err))
	assert.ErrorIs(t, err, cause)

	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Failed to calculate audience size.", appErr.UserMessage())

	entries := logs.FilterMessage("Error querying audience size").All()
	require.Len(t, entries, 1)
	assert.Equal(t, cause.Error(), entries[0].ContextMap()["error"])
}

func TestService_QueryTimeout(t *testing.T) {
	store := new(storeMock)
	store.On("CountMatching", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
		}).
		Return(int64(0), nil)

	svc := NewService(store, logger.NopLogger(), WithQueryTimeout(time.Second))
	_, err := svc.GetAudienceSize(context.Background(), []interface{}{rule("visits", ">", 1, "AND")})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestService_Compile(t *testing.T) {
	svc := NewService(nil, logger.NopLogger())

	comp, err := svc.Compile(context.Background(), []interface{}{
		rule("visits", ">", 1, "AND"),
		rule("city", "=", "Paris", "OR"),
	})
	require.NoError(t, err)
	assert.Equal(t, "legacy", comp.Policy)
	assert.True(t, comp.Collapsed)
	assert.Len(t, comp.Rules, 2)
	assert.Len(t, comp.Conditions, 2)

	svc = NewService(nil, logger.NopLogger(), WithCombiner(GroupedCombiner{}))
	comp, err = svc.Compile(context.Background(), []interface{}{
		rule("visits", ">", 1, "AND"),
		rule("city", "=", "Paris", "OR"),
	})
	require.NoError(t, err)
	assert.Equal(t, "grouped", comp.Policy)
	assert.False(t, comp.Collapsed)
	assert.IsType(t, Or{}, comp.Filter)
}

func seedCustomers(t *testing.T, repo *EmbeddedRepository) {
	t.Helper()

	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }

	require.NoError(t, repo.Insert(context.Background(), "customers",
		map[string]interface{}{"name": "ana", "visits": float64(10), "total_spends": 250.0, "last_visit": day(15, 0)},
		map[string]interface{}{"name": "bo", "visits": float64(3), "total_spends": 40.0, "last_visit": day(15, 23)},
		map[string]interface{}{"name": "cy", "visits": float64(7), "total_spends": 99.5, "last_visit": day(14, 23)},
		map[string]interface{}{"name": "di", "visits": float64(1), "total_spends": 1000.0, "last_visit": day(16, 0)},
		map[string]interface{}{"name": "ed", "visits": float64(12), "total_spends": 10.0, "last_visit": day(10, 12)},
	))
}

func TestService_EmbeddedStore(t *testing.T) {
	ctx := context.Background()

	repo := NewEmbeddedRepository()
	require.NoError(t, repo.Open(ctx, "customers", ""))
	require.NoError(t, repo.EnsureIndexes(ctx, "customers"))
	seedCustomers(t, repo)
	// a customer record carrying none of the rule fields
	require.NoError(t, repo.Insert(ctx, "customers", map[string]interface{}{"name": "fay"}))

	legacy := NewService(repo, logger.NopLogger())
	grouped := NewService(repo, logger.NopLogger(), WithCombiner(GroupedCombiner{}))

	tests := []struct {
		name     string
		svc      *Service
		rules    []interface{}
		expected int64
	}{
		{
			name:     "numeric and",
			svc:      legacy,
			rules:    []interface{}{rule("visits", ">", "5", "AND"), rule("total_spends", ">=", "99.5", "AND")},
			expected: 2,
		},
		{
			name:     "date equality covers the whole day",
			svc:      legacy,
			rules:    []interface{}{rule("last_visit", "=", "2024-03-15T12:34:56Z", "AND")},
			expected: 2,
		},
		{
			name:     "date comparison",
			svc:      legacy,
			rules:    []interface{}{rule("last_visit", "<", "2024-03-15", "AND")},
			expected: 2,
		},
		{
			name:     "not equal",
			svc:      legacy,
			rules:    []interface{}{rule("name", "!=", "ana", "AND")},
			expected: 5,
		},
		{
			name:     "not equal counts records without the field",
			svc:      legacy,
			rules:    []interface{}{rule("visits", "!=", "10", "AND")},
			expected: 5,
		},
		{
			name:     "not equal inside a group",
			svc:      grouped,
			rules:    []interface{}{rule("visits", "!=", 10, "AND"), rule("total_spends", ">", 500, "OR")},
			expected: 5,
		},
		{
			name:     "legacy or keeps first rule",
			svc:      legacy,
			rules:    []interface{}{rule("visits", ">=", 10, "AND"), rule("total_spends", ">", 500, "OR")},
			expected: 2,
		},
		{
			name:     "grouped or",
			svc:      grouped,
			rules:    []interface{}{rule("visits", ">=", 10, "AND"), rule("total_spends", ">", 500, "OR")},
			expected: 3,
		},
		{
			name: "grouped and binds tighter",
			svc:  grouped,
			rules: []interface{}{
				rule("visits", ">", 5, "AND"),
				rule("total_spends", "<", 100, "AND"),
				rule("last_visit", "=", "2024-03-16", "OR"),
			},
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := tt.svc.GetAudienceSize(ctx, tt.rules)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, size)
		})
	}
}

func TestService_CircuitBreakerSurfacesQueryFailure(t *testing.T) {
	cause := errors.New("server selection timeout")

	store := new(storeMock)
	store.On("CountMatching", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), cause)

	guarded := NewCircuitBreakerRepository(store, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})
	svc := NewService(guarded, logger.NopLogger())
	rules := []interface{}{rule("visits", ">", 1, "AND")}

	for i := 0; i < 2; i++ {
		_, err := svc.GetAudienceSize(context.Background(), rules)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
	}
	assert.Equal(t, "open", guarded.State())

	_, err := svc.GetAudienceSize(context.Background(), rules)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsQueryExecutionFailed(err))
	store.AssertNumberOfCalls(t, "CountMatching", 2)
}
