package codeboard_test

import (
	"context"
	"sync"
	"testing"

	cb "github.com/codeboard/codeboard"
	"github.com/codeboard/codeboard/stores/fs"
)

func TestResolveCreatesAccountOnce(t *testing.T) {
	store := fs.NewAccountStore(t.TempDir())
	bridge := &cb.Bridge{Accounts: store}
	ctx := context.Background()

	first, err := bridge.Resolve(ctx, testProfile())
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("resolved account should have an ID")
	}
	if first.ExternalID != "gh-123" {
		t.Errorf("ExternalID = %q, want %q", first.ExternalID, "gh-123")
	}

	second, err := bridge.Resolve(ctx, testProfile())
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second login resolved to %q, want the existing account %q", second.ID, first.ID)
	}
}

// raceStore simulates losing a first-login create race: the initial lookup
// misses, the create collides with the winner's row, and the re-read finds it.
type raceStore struct {
	winner cb.Account

	mu    sync.Mutex
	finds int
}

func (r *raceStore) FindByExternalID(ctx context.Context, externalID string) (*cb.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.finds == 1 {
		return nil, cb.ErrAccountNotFound
	}
	account := r.winner
	return &account, nil
}

func (r *raceStore) Create(ctx context.Context, profile cb.ExternalProfile) (*cb.Account, error) {
	return nil, cb.ErrDuplicateAccount
}

func (r *raceStore) FindByID(ctx context.Context, id string) (*cb.Account, error) {
	return nil, cb.ErrAccountNotFound
}

func (r *raceStore) SetRefreshHash(ctx context.Context, accountID string, digest *string) error {
	return nil
}

func (r *raceStore) RotateRefreshHash(ctx context.Context, accountID string, observed string, next *string) error {
	return nil
}

func (r *raceStore) SaveStats(ctx context.Context, accountID string, stats map[string]any) error {
	return nil
}

func TestResolveRecoversFromCreateRace(t *testing.T) {
	store := &raceStore{winner: cb.Account{ID: "acct-winner", ExternalID: "gh-123"}}
	bridge := &cb.Bridge{Accounts: store}

	account, err := bridge.Resolve(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("Resolve should recover from the duplicate create, got %v", err)
	}
	if account.ID != "acct-winner" {
		t.Errorf("resolved %q, want the winner's account", account.ID)
	}
}

func TestConcurrentFirstLoginsShareOneAccount(t *testing.T) {
	store := fs.NewAccountStore(t.TempDir())
	bridge := &cb.Bridge{Accounts: store}

	const logins = 8
	ids := make(chan string, logins)
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			account, err := bridge.Resolve(context.Background(), testProfile())
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			ids <- account.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("concurrent first logins created %d accounts, want 1", len(seen))
	}
}
