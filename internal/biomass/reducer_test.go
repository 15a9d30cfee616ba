package biomass

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carbon-estimator/internal/geometry"
	"github.com/sells-group/carbon-estimator/internal/resilience"
	"github.com/sells-group/carbon-estimator/pkg/earthengine"
	"github.com/sells-group/carbon-estimator/pkg/earthengine/mocks"
)

const squareJSON = `{"type":"Polygon","coordinates":[[[-60.1,-3.1],[-60.0,-3.1],[-60.0,-3.0],[-60.1,-3.0],[-60.1,-3.1]]]}`

func testRegion(t *testing.T, data string) *geometry.Region {
	t.Helper()
	r, err := geometry.ParseGeoJSON([]byte(data))
	require.NoError(t, err)
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = resilience.RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	cfg.Breaker = resilience.BreakerSettings{Name: "test", Threshold: 2, Cooldown: time.Hour}
	return cfg
}

func TestReduce_Success(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.AnythingOfType("earthengine.Expression")).
		Return(json.RawMessage(`{"agb":100.5,"bgb":20}`), nil).Once()

	r := NewReducer(client, testConfig())
	got, err := r.Reduce(context.Background(), testRegion(t, squareJSON))
	require.NoError(t, err)

	assert.InDelta(t, 904.5, got.AbovegroundTonnes, 1e-9)
	assert.InDelta(t, 180.0, got.BelowgroundTonnes, 1e-9)
	assert.InDelta(t, 1084.5, got.TotalTonnes, 1e-9)
	assert.Equal(t, got.AbovegroundTonnes+got.BelowgroundTonnes, got.TotalTonnes)
}

func TestReduce_NullAndMissingBands(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		above float64
		below float64
	}{
		{"both null", `{"agb":null,"bgb":null}`, 0, 0},
		{"bgb missing", `{"agb":2}`, 18, 0},
		{"empty object", `{}`, 0, 0},
		{"null result", `null`, 0, 0},
		{"negative clamped", `{"agb":-5,"bgb":1}`, 0, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockClient(t)
			client.On("ComputeValue", mock.Anything, mock.Anything).Return(json.RawMessage(tt.raw), nil)

			got, err := NewReducer(client, testConfig()).Reduce(context.Background(), testRegion(t, squareJSON))
			require.NoError(t, err)
			assert.InDelta(t, tt.above, got.AbovegroundTonnes, 1e-9)
			assert.InDelta(t, tt.below, got.BelowgroundTonnes, 1e-9)
			assert.InDelta(t, tt.above+tt.below, got.TotalTonnes, 1e-9)
		})
	}
}

func TestReduce_MalformedResult(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).Return(json.RawMessage(`[1,2]`), nil)

	_, err := NewReducer(client, testConfig()).Reduce(context.Background(), testRegion(t, squareJSON))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode reduction")
}

func TestReduce_ExpressionShape(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.MatchedBy(func(expr earthengine.Expression) bool {
		root := expr.Values[expr.Result].FunctionInvocationValue
		if root == nil || root.FunctionName != "Image.reduceRegion" {
			return false
		}
		geom := root.Arguments["geometry"].FunctionInvocationValue
		image := root.Arguments["image"].FunctionInvocationValue
		return geom != nil && geom.FunctionName == "GeometryConstructors.Polygon" &&
			image != nil && image.FunctionName == "Collection.first" &&
			root.Arguments["reducer"].FunctionInvocationValue.FunctionName == "Reducer.sum" &&
			root.Arguments["scale"].ConstantValue == 300.0 &&
			root.Arguments["bestEffort"].ConstantValue == true &&
			root.Arguments["maxPixels"].ConstantValue == 1e13
	})).Return(json.RawMessage(`{"agb":1,"bgb":1}`), nil).Once()

	_, err := NewReducer(client, testConfig()).Reduce(context.Background(), testRegion(t, squareJSON))
	require.NoError(t, err)
}

func TestExpression_JSON(t *testing.T) {
	r := NewReducer(nil, testConfig())
	data, err := json.Marshal(r.Expression(testRegion(t, `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}`)))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	root := decoded["values"].(map[string]any)["0"].(map[string]any)["functionInvocationValue"].(map[string]any)
	args := root["arguments"].(map[string]any)
	geom := args["geometry"].(map[string]any)["functionInvocationValue"].(map[string]any)
	assert.Equal(t, "GeometryConstructors.MultiPolygon", geom["functionName"])

	coords := geom["arguments"].(map[string]any)["coordinates"].(map[string]any)["constantValue"]
	assert.Equal(t, []any{[]any{[]any{
		[]any{0.0, 0.0}, []any{1.0, 0.0}, []any{1.0, 1.0}, []any{0.0, 0.0},
	}}}, coords)
	assert.Contains(t, string(data), `"maxPixels":{"constantValue":10000000000000}`)
	assert.Contains(t, string(data), `"id":{"constantValue":"NASA/ORNL/biomass_carbon_density/v1"}`)
}

func TestReduce_RetriesTransient(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(nil, &earthengine.APIError{StatusCode: 503, Message: "busy"}).Twice()
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(json.RawMessage(`{"agb":1,"bgb":0}`), nil).Once()

	got, err := NewReducer(client, testConfig()).Reduce(context.Background(), testRegion(t, squareJSON))
	require.NoError(t, err)
	assert.InDelta(t, 9.0, got.TotalTonnes, 1e-9)
}

func TestReduce_PermanentErrorNotRetried(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(nil, &earthengine.APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "bad geometry"}).Once()

	_, err := NewReducer(client, testConfig()).Reduce(context.Background(), testRegion(t, squareJSON))
	require.Error(t, err)

	var apiErr *earthengine.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestReduce_CircuitOpens(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(nil, &earthengine.APIError{StatusCode: 500, Message: "down"})

	cfg := testConfig()
	cfg.Retry.Attempts = 1
	cfg.CacheEntries = 0
	r := NewReducer(client, cfg)

	for _, poly := range []string{squareJSON, `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`} {
		_, err := r.Reduce(context.Background(), testRegion(t, poly))
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, r.BreakerState())

	_, err := r.Reduce(context.Background(), testRegion(t, squareJSON))
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrOpen), "got %v", err)
	client.AssertNumberOfCalls(t, "ComputeValue", 2)
}

func TestReduce_CachesResults(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(json.RawMessage(`{"agb":3,"bgb":1}`), nil).Once()

	r := NewReducer(client, testConfig())
	first, err := r.Reduce(context.Background(), testRegion(t, squareJSON))
	require.NoError(t, err)
	second, err := r.Reduce(context.Background(), testRegion(t, squareJSON))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
	stats := r.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Entries)
}

func TestReduce_CoalescesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(func(context.Context, earthengine.Expression) (json.RawMessage, error) {
			<-release
			return json.RawMessage(`{"agb":1,"bgb":1}`), nil
		}).Once()

	cfg := testConfig()
	cfg.CacheEntries = 0
	r := NewReducer(client, cfg)
	region := testRegion(t, squareJSON)

	var wg sync.WaitGroup
	results := make([]*CarbonTotal, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Reduce(context.Background(), region)
		}(i)
	}

	// Give the goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, got := range results {
		require.NotNil(t, got)
		assert.InDelta(t, 18.0, got.TotalTonnes, 1e-9)
	}
}

func TestReduce_CallerContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(func(context.Context, earthengine.Expression) (json.RawMessage, error) {
			<-release
			return json.RawMessage(`{}`), nil
		}).Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewReducer(client, testConfig()).Reduce(ctx, testRegion(t, squareJSON))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestReduce_SharedCallTimesOut(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ earthengine.Expression) (json.RawMessage, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return json.RawMessage(`{"agb":1,"bgb":1}`), nil
			}
		}).Once()

	cfg := testConfig()
	cfg.Retry.Attempts = 1
	cfg.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := NewReducer(client, cfg).Reduce(context.Background(), testRegion(t, squareJSON))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestReduce_RetriesRetryableGoogleStatus(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(nil, &earthengine.APIError{StatusCode: 409, Status: "ABORTED", Message: "concurrent modification"}).Once()
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(json.RawMessage(`{"agb":2,"bgb":0}`), nil).Once()

	got, err := NewReducer(client, testConfig()).Reduce(context.Background(), testRegion(t, squareJSON))
	require.NoError(t, err)
	assert.InDelta(t, 18.0, got.TotalTonnes, 1e-9)
}

func TestMarkRetryable(t *testing.T) {
	assert.NoError(t, markRetryable(nil))

	plain := &earthengine.APIError{StatusCode: 409, Status: "FAILED_PRECONDITION"}
	assert.Same(t, error(plain), markRetryable(plain))
	assert.False(t, resilience.IsTransient(markRetryable(plain)))

	marked := markRetryable(&earthengine.APIError{StatusCode: 400, Status: "UNAVAILABLE"})
	assert.True(t, resilience.IsTransient(marked))
	var apiErr *earthengine.APIError
	require.ErrorAs(t, marked, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestReducer_Status(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputeValue", mock.Anything, mock.Anything).
		Return(nil, &earthengine.APIError{StatusCode: 500, Message: "down"}).Once()

	cfg := testConfig()
	cfg.Retry.Attempts = 1
	r := NewReducer(client, cfg)

	_, err := r.Reduce(context.Background(), testRegion(t, squareJSON))
	require.Error(t, err)

	st := r.Status()
	assert.Equal(t, "closed", st.Breaker)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, int64(1), st.Cache.Misses)
}

func TestReduce_NilRegion(t *testing.T) {
	_, err := NewReducer(nil, testConfig()).Reduce(context.Background(), nil)
	assert.ErrorIs(t, err, geometry.ErrMissing)
}

func TestNewReducer_Defaults(t *testing.T) {
	r := NewReducer(nil, Config{Scale: 300})
	assert.Equal(t, DefaultDataset, r.Dataset())
	assert.InDelta(t, 9.0, r.cfg.PixelAreaHa, 1e-9)
	assert.Equal(t, CacheStats{}, r.CacheStats())
	assert.Equal(t, resilience.StateClosed, r.BreakerState())
}
