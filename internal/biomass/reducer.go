// Package biomass sums above- and below-ground carbon over a region using
// Earth Engine.
package biomass

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/carbon-estimator/internal/geometry"
	"github.com/sells-group/carbon-estimator/internal/resilience"
	"github.com/sells-group/carbon-estimator/pkg/earthengine"
)

// DefaultDataset is the NASA/ORNL global biomass carbon density image
// collection; bands agb and bgb are in Mg C per hectare.
const DefaultDataset = "NASA/ORNL/biomass_carbon_density/v1"

const (
	bandAboveground = "agb"
	bandBelowground = "bgb"
)

// CarbonTotal is the carbon stock of a region in tonnes.
type CarbonTotal struct {
	AbovegroundTonnes float64 `json:"aboveground_tonnes" yaml:"aboveground_tonnes"`
	BelowgroundTonnes float64 `json:"belowground_tonnes" yaml:"belowground_tonnes"`
	TotalTonnes       float64 `json:"total_tonnes" yaml:"total_tonnes"`
}

// Config controls the reduction request and its resilience wrapping.
type Config struct {
	Dataset    string
	Scale      float64 // meters per pixel
	MaxPixels  float64
	BestEffort bool
	// PixelAreaHa converts a per-hectare band sum to tonnes.
	PixelAreaHa float64
	// Timeout bounds one shared computation, retries included. Zero means
	// no limit.
	Timeout time.Duration

	Retry   resilience.RetryPolicy
	Breaker resilience.BreakerSettings

	CacheEntries int
	CacheTTL     time.Duration
}

// DefaultConfig matches a 300 m pixel (9 ha).
func DefaultConfig() Config {
	return Config{
		Dataset:      DefaultDataset,
		Scale:        300,
		MaxPixels:    1e13,
		BestEffort:   true,
		PixelAreaHa:  9,
		Timeout:      2 * time.Minute,
		Retry:        resilience.NewRetryPolicy(0, 0, 0),
		Breaker:      resilience.NewBreakerSettings("earthengine", 0, 0),
		CacheEntries: 256,
		CacheTTL:     time.Hour,
	}
}

// Reducer turns a region into a CarbonTotal. Identical regions requested
// concurrently share one Earth Engine call.
type Reducer struct {
	client  earthengine.Client
	cfg     Config
	breaker *resilience.Breaker
	cache   *ResultCache
	group   singleflight.Group
}

// NewReducer creates a Reducer over client.
func NewReducer(client earthengine.Client, cfg Config) *Reducer {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.PixelAreaHa <= 0 {
		cfg.PixelAreaHa = cfg.Scale * cfg.Scale / 10_000
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = resilience.IsTransient
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.LogRetries("biomass")
	}
	if cfg.Breaker.Trips == nil {
		cfg.Breaker.Trips = resilience.IsTransient
	}

	return &Reducer{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewBreaker(cfg.Breaker),
		cache:   NewResultCache(cfg.CacheEntries, cfg.CacheTTL),
	}
}

// Reduce returns the carbon totals for region. A result is computed at most
// once per region while it stays cached.
func (r *Reducer) Reduce(ctx context.Context, region *geometry.Region) (*CarbonTotal, error) {
	if region == nil {
		return nil, geometry.ErrMissing
	}

	key, err := region.Fingerprint()
	if err != nil {
		return nil, eris.Wrap(err, "biomass: fingerprint region")
	}

	if total, ok := r.cache.Get(key); ok {
		zap.L().Debug("biomass: cache hit", zap.String("region", key[:12]))
		return &total, nil
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := r.group.DoChan(key, func() (any, error) {
		return r.compute(context.WithoutCancel(ctx), region, key)
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "biomass: reduce region")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		total := res.Val.(CarbonTotal)
		return &total, nil
	}
}

func (r *Reducer) compute(ctx context.Context, region *geometry.Region, key string) (CarbonTotal, error) {
	start := time.Now()
	expr := r.Expression(region)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	raw, err := resilience.Guard(ctx, r.breaker, func(ctx context.Context) (json.RawMessage, error) {
		return resilience.Retry(ctx, r.cfg.Retry, func(ctx context.Context) (json.RawMessage, error) {
			raw, err := r.client.ComputeValue(ctx, expr)
			return raw, markRetryable(err)
		})
	})
	if err != nil {
		return CarbonTotal{}, eris.Wrap(err, "biomass: reduce region")
	}

	total, err := r.decode(raw)
	if err != nil {
		return CarbonTotal{}, err
	}

	r.cache.Put(key, total)
	bounds := region.Bounds()
	zap.L().Info("biomass: region reduced",
		zap.String("type", region.Type()),
		zap.Int("vertices", region.NumVertices()),
		zap.Float64s("bounds", bounds[:]),
		zap.Float64("total_tonnes", total.TotalTonnes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return total, nil
}

// retryableStatuses are Google API status names that are worth retrying
// whatever HTTP code carried them.
var retryableStatuses = map[string]bool{
	"ABORTED":            true,
	"UNAVAILABLE":        true,
	"RESOURCE_EXHAUSTED": true,
	"DEADLINE_EXCEEDED":  true,
}

func markRetryable(err error) error {
	var apiErr *earthengine.APIError
	if errors.As(err, &apiErr) && retryableStatuses[apiErr.Status] {
		return resilience.MarkTransient(err, apiErr.StatusCode)
	}
	return err
}

// Expression builds the reduceRegion call summing both bands over region.
func (r *Reducer) Expression(region *geometry.Region) earthengine.Expression {
	image := earthengine.Invoke("Collection.first", map[string]earthengine.ValueNode{
		"collection": earthengine.Invoke("ImageCollection.load", map[string]earthengine.ValueNode{
			"id": earthengine.Constant(r.cfg.Dataset),
		}),
	})

	geom := earthengine.Invoke("GeometryConstructors."+region.Type(), map[string]earthengine.ValueNode{
		"coordinates": earthengine.Constant(region.Coordinates()),
	})

	return earthengine.NewExpression(earthengine.Invoke("Image.reduceRegion", map[string]earthengine.ValueNode{
		"image":      image,
		"reducer":    earthengine.Invoke("Reducer.sum", nil),
		"geometry":   geom,
		"scale":      earthengine.Constant(r.cfg.Scale),
		"bestEffort": earthengine.Constant(r.cfg.BestEffort),
		"maxPixels":  earthengine.Constant(r.cfg.MaxPixels),
	}))
}

func (r *Reducer) decode(raw json.RawMessage) (CarbonTotal, error) {
	var sums map[string]*float64
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sums); err != nil {
			return CarbonTotal{}, eris.Wrap(err, "biomass: decode reduction")
		}
	}

	above := tonnes(sums[bandAboveground], r.cfg.PixelAreaHa)
	below := tonnes(sums[bandBelowground], r.cfg.PixelAreaHa)
	return CarbonTotal{
		AbovegroundTonnes: above,
		BelowgroundTonnes: below,
		TotalTonnes:       above + below,
	}, nil
}

// tonnes converts a band sum in Mg C/ha to tonnes. Missing, non-finite and
// negative sums count as zero.
func tonnes(sum *float64, pixelAreaHa float64) float64 {
	if sum == nil || math.IsNaN(*sum) || math.IsInf(*sum, 0) || *sum <= 0 {
		return 0
	}
	return *sum * pixelAreaHa
}

// BreakerState reports the Earth Engine circuit state.
func (r *Reducer) BreakerState() resilience.BreakerState {
	return r.breaker.State()
}

// Status summarizes the reducer's view of Earth Engine.
type Status struct {
	Breaker  string     `json:"breaker"`
	Failures int        `json:"consecutive_failures"`
	Cache    CacheStats `json:"cache"`
}

// Status reports the circuit state, its consecutive failure count and the
// result cache statistics.
func (r *Reducer) Status() Status {
	return Status{
		Breaker:  r.breaker.State().String(),
		Failures: r.breaker.Failures(),
		Cache:    r.cache.Stats(),
	}
}

// CacheStats reports result cache statistics.
func (r *Reducer) CacheStats() CacheStats {
	return r.cache.Stats()
}

// Timeout returns the limit on one shared computation.
func (r *Reducer) Timeout() time.Duration {
	return r.cfg.Timeout
}

// Dataset returns the image collection being reduced.
func (r *Reducer) Dataset() string {
	return r.cfg.Dataset
}
