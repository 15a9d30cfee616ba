package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-estimator/internal/biomass"
	"github.com/sells-group/carbon-estimator/internal/config"
	"github.com/sells-group/carbon-estimator/internal/resilience"
	"github.com/sells-group/carbon-estimator/pkg/earthengine"
)

// newEarthEngineClient resolves credentials and fetches the first access
// token so that bad credentials fail at startup instead of on the first
// request. Later tokens are refreshed lazily. A configured access token
// bypasses the service-account flow and is used as is.
func newEarthEngineClient(ctx context.Context, c config.EarthEngineConfig) (earthengine.Client, error) {
	hc := &http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}

	if c.AccessToken != "" {
		if c.Project == "" {
			return nil, eris.New("earthengine: project is required with access_token")
		}
		zap.L().Info("earthengine: using static access token", zap.String("project", c.Project))
		return earthengine.NewClient(c.Project, earthengine.StaticToken(c.AccessToken), clientOptions(c, hc)...), nil
	}

	sa, err := earthengine.LoadCredentials(c.ServiceAccountKey, c.KeyFile)
	if err != nil {
		return nil, eris.Wrap(err, "earthengine credentials")
	}
	if c.TokenURL != "" && c.TokenURL != earthengine.DefaultTokenURL {
		sa.TokenURI = c.TokenURL
	}

	tokens, err := earthengine.NewServiceAccountTokenSource(sa, hc)
	if err != nil {
		return nil, err
	}
	if _, err := tokens.Token(ctx); err != nil {
		return nil, eris.Wrap(err, "earthengine authentication")
	}

	project := c.Project
	if project == "" {
		project = sa.ProjectID
	}
	zap.L().Info("earthengine: authenticated",
		zap.String("account", sa.ClientEmail),
		zap.String("project", project),
	)

	return earthengine.NewClient(project, tokens, clientOptions(c, hc)...), nil
}

func clientOptions(c config.EarthEngineConfig, hc *http.Client) []earthengine.Option {
	opts := []earthengine.Option{earthengine.WithHTTPClient(hc)}
	if c.BaseURL != "" {
		opts = append(opts, earthengine.WithBaseURL(c.BaseURL))
	}
	if c.RateLimit > 0 {
		opts = append(opts, earthengine.WithRateLimit(c.RateLimit))
	}
	return opts
}

// newReducer maps configuration onto a biomass reducer.
func newReducer(client earthengine.Client, c *config.Config) *biomass.Reducer {
	return biomass.NewReducer(client, biomass.Config{
		Dataset:     c.EarthEngine.Dataset,
		Scale:       c.EarthEngine.Scale,
		MaxPixels:   c.EarthEngine.MaxPixels,
		BestEffort:  c.EarthEngine.BestEffort,
		PixelAreaHa: c.EarthEngine.PixelAreaHa,
		Timeout:     time.Duration(c.EarthEngine.TimeoutSecs) * time.Second,
		Retry: resilience.NewRetryPolicy(
			c.Reducer.Retry.MaxAttempts,
			c.Reducer.Retry.InitialBackoffMs,
			c.Reducer.Retry.MaxBackoffMs,
		),
		Breaker: resilience.NewBreakerSettings(
			"earthengine",
			c.Reducer.Circuit.FailureThreshold,
			c.Reducer.Circuit.ResetTimeoutSecs,
		),
		CacheEntries: c.Reducer.Cache.MaxEntries,
		CacheTTL:     c.Reducer.Cache.TTL(),
	})
}
