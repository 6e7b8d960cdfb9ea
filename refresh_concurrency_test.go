package rotauth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Sixteen goroutines race the same refresh token. Exactly one rotation may
// win; every loser must be classified as reuse or invalid, never as a
// second success.
func TestConcurrentRefreshSingleWinner(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	login := mustLogin(t, engine, "alice", "alice-secret")

	const racers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)

	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := engine.Refresh(ctx, login.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrTokenReuseDetected), errors.Is(err, ErrInvalidToken):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if losers != racers-1 {
		t.Fatalf("losers = %d, want %d", losers, racers-1)
	}
}

func TestConcurrentLoginsAreIndependent(t *testing.T) {
	engine, _ := newTestEngine(t, withAccounts(
		Account{ID: "u-10", Username: "erin", PasswordHash: "erin-secret", Enabled: true},
		Account{ID: "u-11", Username: "frank", PasswordHash: "frank-secret", Enabled: true},
	))

	var wg sync.WaitGroup
	for _, creds := range [][2]string{
		{"alice", "alice-secret"},
		{"erin", "erin-secret"},
		{"frank", "frank-secret"},
	} {
		wg.Add(1)
		go func(username, password string) {
			defer wg.Done()
			if _, err := engine.Login(context.Background(), username, password); err != nil {
				t.Errorf("Login(%s): %v", username, err)
			}
		}(creds[0], creds[1])
	}
	wg.Wait()
}
