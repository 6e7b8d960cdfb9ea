package rotauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memoryDirectory is an in-memory UserDirectory for tests.
type memoryDirectory struct {
	mu         sync.RWMutex
	byUsername map[string]Account
	byID       map[string]Account
}

func newMemoryDirectory(accounts ...Account) *memoryDirectory {
	d := &memoryDirectory{
		byUsername: make(map[string]Account),
		byID:       make(map[string]Account),
	}
	for _, acct := range accounts {
		d.put(acct)
	}
	return d
}

func (d *memoryDirectory) put(acct Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byUsername[acct.Username] = acct
	d.byID[acct.ID] = acct
}

func (d *memoryDirectory) remove(acct Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byUsername, acct.Username)
	delete(d.byID, acct.ID)
}

func (d *memoryDirectory) FindByUsername(_ context.Context, username string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byUsername[username]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return acct, nil
}

func (d *memoryDirectory) FindByID(_ context.Context, id string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byID[id]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return acct, nil
}

// stubVerifier treats the stored hash as the plaintext password, keeping
// tests fast without exercising argon2.
type stubVerifier struct{}

func (stubVerifier) Verify(password, encodedHash string) (bool, error) {
	return password == encodedHash, nil
}

type engineOption func(*testEnv)

type testEnv struct {
	config    Config
	directory *memoryDirectory
	sink      AuditSink
}

func withAccounts(accounts ...Account) engineOption {
	return func(env *testEnv) {
		for _, acct := range accounts {
			env.directory.put(acct)
		}
	}
}

func withAuditSink(sink AuditSink) engineOption {
	return func(env *testEnv) {
		env.sink = sink
		env.config.Audit.Enabled = true
		env.config.Audit.BufferSize = 64
		env.config.Audit.DropIfFull = false
	}
}

func withConfig(mutate func(*Config)) engineOption {
	return func(env *testEnv) {
		mutate(&env.config)
	}
}

func aliceAccount() Account {
	return Account{
		ID:           "u-1",
		Username:     "alice",
		PasswordHash: "alice-secret",
		Enabled:      true,
		Roles:        []string{"user"},
	}
}

func newTestEngine(t *testing.T, opts ...engineOption) (*Engine, *memoryDirectory) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	env := &testEnv{
		config:    defaultConfig(),
		directory: newMemoryDirectory(aliceAccount()),
	}
	env.config.JWT.PrivateKey = priv
	env.config.JWT.PublicKey = pub
	env.config.JWT.Issuer = "rotauth-test"
	env.config.RateLimit.Enabled = false
	env.config.Metrics.Enabled = true

	for _, opt := range opts {
		opt(env)
	}

	b := New().
		WithConfig(env.config).
		WithRedis(client).
		WithUserDirectory(env.directory).
		WithPasswordVerifier(stubVerifier{})
	if env.sink != nil {
		b = b.WithAuditSink(env.sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, env.directory
}

func mustLogin(t *testing.T, engine *Engine, username, password string) *LoginResult {
	t.Helper()

	result, err := engine.Login(context.Background(), username, password)
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return result
}

func collectEvents(t *testing.T, sink *ChannelSink, want int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, want)
	timeout := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("collected %d audit events, want %d", len(events), want)
		}
	}
	return events
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}
