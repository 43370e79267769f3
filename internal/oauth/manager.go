package oauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

//go:generate mockgen -source=$GOFILE -destination=manager_mocks_test.go -package=oauth

// ErrNotConnected means the provider has no usable credentials and the
// user has to go through the consent flow (again).
var ErrNotConnected = errors.New("provider not connected")

type tokensRepo interface {
	Get(ctx context.Context, provider string) (TokenSet, error)
	Save(ctx context.Context, provider string, tokens TokenSet) error
	Delete(ctx context.Context, provider string) error
}

// Manager drives the OAuth lifecycle of one provider: consent URL,
// code exchange, transparent refresh and disconnect. Callers only ever
// ask for a valid access token and never deal with refresh themselves.
type Manager struct {
	provider           string
	cfg                *oauth2.Config
	repo               tokensRepo
	randStateGenerator func() string
	nowFn              func() time.Time

	mutex  sync.Mutex
	state  string
	tokens TokenSet
	loaded bool
}

func NewManager(provider string, cfg *oauth2.Config, repo tokensRepo) *Manager {
	return &Manager{
		provider:           provider,
		cfg:                cfg,
		repo:               repo,
		randStateGenerator: GenerateStateString,
		nowFn:              time.Now,
	}
}

func GenerateStateString() string {
	s, err := pkg.GenerateRandomString(16)
	if err != nil {
		// crypto/rand failing means the whole process is in trouble
		panic(err)
	}
	return s
}

// AuthURL returns the provider consent URL with a fresh random state.
func (m *Manager) AuthURL() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state = m.randStateGenerator()
	return m.cfg.AuthCodeURL(m.state, oauth2.AccessTypeOffline)
}

// HandleCallback finishes the consent flow: verifies the state and
// exchanges the authorization code for the token set.
func (m *Manager) HandleCallback(ctx context.Context, state, code string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "oauth.manager.handleCallback")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("provider", m.provider))

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if state == "" || state != m.state {
		return errors.New("state mismatch")
	}
	m.state = ""

	tok, err := m.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	m.tokens = TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	m.loaded = true

	if err := m.repo.Save(ctx, m.provider, m.tokens); err != nil {
		// connection still works for this run, it just won't survive a restart
		log.Errorf("oauth [%s]: persist tokens: %s", m.provider, err)
	}

	log.Infof("oauth [%s]: connected", m.provider)
	return nil
}

// IsConnected reports whether any credentials are present. It says
// nothing about their freshness; GetValidToken handles that.
func (m *Manager) IsConnected(ctx context.Context) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.load(ctx)
	return !m.tokens.Empty()
}

// GetValidToken returns an access token guaranteed (modulo the expiry
// skew) to be accepted by the provider, refreshing transparently when
// needed. A failed refresh clears the stored credentials and returns
// ErrNotConnected, making the reconnect need explicit.
func (m *Manager) GetValidToken(ctx context.Context) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "oauth.manager.getValidToken")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("provider", m.provider))

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.load(ctx)

	if m.tokens.Valid(m.nowFn()) {
		return m.tokens.AccessToken, nil
	}
	if m.tokens.RefreshToken == "" {
		return "", ErrNotConnected
	}

	// the mutex makes concurrent callers share a single refresh
	oldRefreshToken := m.tokens.RefreshToken
	tok, err := m.cfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: oldRefreshToken,
	}).Token()
	if err != nil {
		log.Errorf("oauth [%s]: token refresh failed, clearing credentials: %s", m.provider, err)
		m.clear(ctx)
		return "", fmt.Errorf("%w: token refresh failed: %s", ErrNotConnected, err)
	}

	m.tokens = TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if m.tokens.RefreshToken == "" {
		// providers may omit the refresh token on refresh responses
		m.tokens.RefreshToken = oldRefreshToken
	}

	if err := m.repo.Save(ctx, m.provider, m.tokens); err != nil {
		log.Errorf("oauth [%s]: persist refreshed tokens: %s", m.provider, err)
	}

	log.Debugf("oauth [%s]: access token refreshed", m.provider)
	return m.tokens.AccessToken, nil
}

// Disconnect drops the provider credentials everywhere.
func (m *Manager) Disconnect(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "oauth.manager.disconnect")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("provider", m.provider))

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tokens = TokenSet{}
	m.loaded = true
	if err := m.repo.Delete(ctx, m.provider); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	log.Infof("oauth [%s]: disconnected", m.provider)
	return nil
}

// TokenSource adapts the manager to the oauth2.TokenSource interface
// expected by google api clients.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, manager: m}
}

type managerTokenSource struct {
	ctx     context.Context
	manager *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	accessToken, err := ts.manager.GetValidToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: accessToken}, nil
}

// load lazily pulls persisted tokens on first use. Callers must hold
// the mutex.
func (m *Manager) load(ctx context.Context) {
	if m.loaded {
		return
	}
	tokens, err := m.repo.Get(ctx, m.provider)
	if err != nil {
		if !errors.Is(err, ErrTokenNotFound) {
			log.Errorf("oauth [%s]: load tokens: %s", m.provider, err)
			return
		}
		tokens = TokenSet{}
	}
	m.tokens = tokens
	m.loaded = true
}

// clear wipes credentials in memory and storage. Callers must hold the
// mutex.
func (m *Manager) clear(ctx context.Context) {
	m.tokens = TokenSet{}
	if err := m.repo.Delete(ctx, m.provider); err != nil {
		log.Errorf("oauth [%s]: delete tokens: %s", m.provider, err)
	}
}
