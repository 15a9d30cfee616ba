package earthengine

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// Scope is the OAuth2 scope required by the Earth Engine API.
	Scope = "https://www.googleapis.com/auth/earthengine"
	// DefaultTokenURL is Google's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	// DefaultKeyFile is the key file looked up in the working directory when
	// nothing else is configured.
	DefaultKeyFile = "service-account-key.json"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = time.Hour
	refreshSkew    = 60 * time.Second
)

// ErrNoCredentials is returned when no service-account key can be located.
var ErrNoCredentials = eris.New("earthengine: credentials not configured")

// TokenSource supplies OAuth2 bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token unchanged.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// ServiceAccount holds the fields of a Google service-account JSON key that
// are needed for the JWT bearer flow.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccount decodes and validates a service-account JSON key.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, eris.Wrap(err, "earthengine: decode service account key")
	}
	if sa.ClientEmail == "" {
		return nil, eris.New("earthengine: service account key has no client_email")
	}
	if sa.PrivateKey == "" {
		return nil, eris.New("earthengine: service account key has no private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURL
	}
	return &sa, nil
}

// LoadCredentials resolves a service-account key. An inline JSON key wins,
// then keyFile, then DefaultKeyFile in the working directory.
func LoadCredentials(inlineKey, keyFile string) (*ServiceAccount, error) {
	if strings.TrimSpace(inlineKey) != "" {
		return ParseServiceAccount([]byte(inlineKey))
	}

	path := keyFile
	if path == "" {
		if _, err := os.Stat(DefaultKeyFile); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNoCredentials
			}
			return nil, eris.Wrapf(err, "earthengine: stat %s", DefaultKeyFile)
		}
		path = DefaultKeyFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "earthengine: read key file %s", path)
	}
	zap.L().Debug("earthengine: loaded service account key", zap.String("path", path))
	return ParseServiceAccount(data)
}

// ServiceAccountTokenSource exchanges signed JWT assertions for access tokens
// and caches each token until shortly before it expires.
type ServiceAccountTokenSource struct {
	email    string
	keyID    string
	tokenURL string
	key      *rsa.PrivateKey
	http     *http.Client
	now      func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceAccountTokenSource parses the account's private key. hc may be nil.
func NewServiceAccountTokenSource(sa *ServiceAccount, hc *http.Client) (*ServiceAccountTokenSource, error) {
	if sa == nil {
		return nil, ErrNoCredentials
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, eris.Wrap(err, "earthengine: parse private key")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	tokenURL := sa.TokenURI
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &ServiceAccountTokenSource{
		email:    sa.ClientEmail,
		keyID:    sa.PrivateKeyID,
		tokenURL: tokenURL,
		key:      key,
		http:     hc,
		now:      time.Now,
	}, nil
}

// Token returns a cached access token or fetches a new one. Concurrent
// refreshes share a single token request, which outlives any one caller's
// cancellation; each caller still stops waiting when its own ctx is done.
func (s *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan("token", func() (any, error) {
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		return s.fetch(shared)
	})

	select {
	case <-ctx.Done():
		return "", eris.Wrap(ctx.Err(), "earthengine: wait for token")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *ServiceAccountTokenSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !s.now().Before(s.expires.Add(-refreshSkew)) {
		return "", false
	}
	return s.token, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (s *ServiceAccountTokenSource) fetch(ctx context.Context) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.email,
		"scope": Scope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		assertion.Header["kid"] = s.keyID
	}
	signed, err := assertion.SignedString(s.key)
	if err != nil {
		return "", eris.Wrap(err, "earthengine: sign assertion")
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {signed},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "earthengine: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "earthengine: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "earthengine: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", eris.Wrap(err, "earthengine: decode token response")
	}
	if tr.AccessToken == "" {
		return "", eris.New("earthengine: token response has no access_token")
	}

	expires := now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	s.mu.Lock()
	s.token = tr.AccessToken
	s.expires = expires
	s.mu.Unlock()

	zap.L().Debug("earthengine: refreshed access token",
		zap.String("client_email", s.email),
		zap.Time("expires", expires),
	)
	return tr.AccessToken, nil
}
