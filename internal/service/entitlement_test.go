package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/storage"
	"github.com/scam-scanner/internal/types"
)

// Mock user store for testing
type mockUserStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	failWith error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*models.User)}
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	user, ok := m.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserStore) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	existing, ok := m.users[user.Email]
	if !ok {
		copied := *user
		copied.ID = fmt.Sprintf("user-%d", len(m.users)+1)
		m.users[user.Email] = &copied
		out := copied
		return &out, nil
	}

	// Merge semantics of the real repository: admin only ORs in, the other
	// flags take the incoming value.
	existing.IsAdmin = existing.IsAdmin || user.IsAdmin
	existing.IsPremium = existing.IsPremium || user.IsPremium
	existing.SubscribedToBlog = existing.SubscribedToBlog || user.SubscribedToBlog
	existing.RequestedPremium = existing.RequestedPremium || user.RequestedPremium
	out := *existing
	return &out, nil
}

func (m *mockUserStore) SetAdmin(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	user, ok := m.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.IsAdmin = true
	return nil
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"User@Example.COM", "user@example.com"},
		{"  alice@example.com  ", "alice@example.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.input); got != tt.expected {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestResolve_NoEmail(t *testing.T) {
	resolver := NewEntitlementResolver(newMockUserStore(), NewAdminList(nil))

	ent := resolver.Resolve(context.Background(), "")
	if ent.IsAdmin || ent.IsPremium {
		t.Errorf("Expected zero entitlement for empty email, got %+v", ent)
	}
	if ent.Tier() != types.TierFree {
		t.Errorf("Expected free tier, got %s", ent.Tier())
	}
}

func TestResolve_AdminFromAllowList(t *testing.T) {
	store := newMockUserStore()
	resolver := NewEntitlementResolver(store, NewAdminList([]string{"Admin@Example.com"}))

	ent := resolver.Resolve(context.Background(), "admin@example.com")
	if !ent.IsAdmin {
		t.Error("Expected allow-listed email to resolve as admin")
	}
	if ent.Tier() != types.TierAdmin {
		t.Errorf("Expected admin tier, got %s", ent.Tier())
	}

	// Resolution creates the user record as a side effect.
	if _, err := store.GetByEmail(context.Background(), "admin@example.com"); err != nil {
		t.Errorf("Expected user record after resolve, got %v", err)
	}
}

func TestResolve_PremiumComesFromStoredFlag(t *testing.T) {
	store := newMockUserStore()
	store.users["paid@example.com"] = &models.User{Email: "paid@example.com", IsPremium: true}
	resolver := NewEntitlementResolver(store, NewAdminList(nil))

	ent := resolver.Resolve(context.Background(), "paid@example.com")
	if !ent.IsPremium {
		t.Error("Expected stored premium flag to resolve as premium")
	}
	if ent.Tier() != types.TierPremium {
		t.Errorf("Expected premium tier, got %s", ent.Tier())
	}

	// A fresh email does not get premium just by showing up.
	ent = resolver.Resolve(context.Background(), "new@example.com")
	if ent.IsPremium {
		t.Error("Expected fresh email to resolve as free")
	}
}

func TestResolve_StoreFailureFailsOpen(t *testing.T) {
	store := newMockUserStore()
	store.failWith = errors.New("connection refused")
	resolver := NewEntitlementResolver(store, NewAdminList([]string{"admin@example.com"}))

	// Allow-list signal survives the outage.
	ent := resolver.Resolve(context.Background(), "admin@example.com")
	if !ent.IsAdmin {
		t.Error("Expected allow-list admin signal despite store failure")
	}

	// Everyone else degrades to free, not to an error.
	ent = resolver.Resolve(context.Background(), "someone@example.com")
	if ent.IsAdmin || ent.IsPremium {
		t.Errorf("Expected free entitlement on store failure, got %+v", ent)
	}
}

func TestAddAdmin_RequiresAdmin(t *testing.T) {
	store := newMockUserStore()
	resolver := NewEntitlementResolver(store, NewAdminList([]string{"root@example.com"}))

	err := resolver.AddAdmin(context.Background(), "random@example.com", "friend@example.com")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "FORBIDDEN" {
		t.Fatalf("Expected FORBIDDEN error, got %v", err)
	}

	if err := resolver.AddAdmin(context.Background(), "root@example.com", "friend@example.com"); err != nil {
		t.Fatalf("Expected admin to add admin, got %v", err)
	}

	// The new admin is effective immediately and can itself add admins.
	if err := resolver.AddAdmin(context.Background(), "friend@example.com", "third@example.com"); err != nil {
		t.Fatalf("Expected newly added admin to be effective, got %v", err)
	}
}

func TestAddAdmin_StoreFailureStillUpdatesAllowList(t *testing.T) {
	store := newMockUserStore()
	resolver := NewEntitlementResolver(store, NewAdminList([]string{"root@example.com"}))
	store.failWith = errors.New("connection refused")

	// Requester is on the in-memory allow-list, so the mutation is authorized
	// even with the store down; persistence is best effort.
	if err := resolver.AddAdmin(context.Background(), "root@example.com", "new@example.com"); err != nil {
		t.Fatalf("Expected allow-list add to succeed, got %v", err)
	}

	ent := resolver.Resolve(context.Background(), "new@example.com")
	if !ent.IsAdmin {
		t.Error("Expected new admin to resolve as admin from the allow-list")
	}
}

func TestAddAdmin_FailsClosedWithoutAllowListEntry(t *testing.T) {
	store := newMockUserStore()
	store.users["dbadmin@example.com"] = &models.User{Email: "dbadmin@example.com", IsAdmin: true}
	resolver := NewEntitlementResolver(store, NewAdminList(nil))

	// Store-flagged admin is accepted while the store is healthy.
	if err := resolver.AddAdmin(context.Background(), "dbadmin@example.com", "a@example.com"); err != nil {
		t.Fatalf("Expected store-flagged admin to be accepted, got %v", err)
	}

	// With the store down and no allow-list entry, the same requester is
	// rejected: admin mutations never fail open.
	resolver2 := NewEntitlementResolver(store, NewAdminList(nil))
	store.failWith = errors.New("connection refused")
	err := resolver2.AddAdmin(context.Background(), "dbadmin@example.com", "b@example.com")
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "FORBIDDEN" {
		t.Fatalf("Expected FORBIDDEN on store outage, got %v", err)
	}
}

func TestAdminEmails(t *testing.T) {
	resolver := NewEntitlementResolver(newMockUserStore(), NewAdminList([]string{"b@example.com", "a@example.com"}))

	emails, err := resolver.AdminEmails(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("AdminEmails failed: %v", err)
	}
	if len(emails) != 2 || emails[0] != "a@example.com" || emails[1] != "b@example.com" {
		t.Errorf("Expected sorted allow-list, got %v", emails)
	}

	if _, err := resolver.AdminEmails(context.Background(), "nobody@example.com"); err == nil {
		t.Error("Expected non-admin to be rejected")
	}
}

func TestAdminList_ConcurrentReadsAndWrites(t *testing.T) {
	list := NewAdminList([]string{"seed@example.com"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			list.Add(fmt.Sprintf("user%d@example.com", i))
		}(i)
		go func() {
			defer wg.Done()
			if !list.Contains("seed@example.com") {
				t.Error("Seed entry disappeared during concurrent writes")
			}
		}()
	}
	wg.Wait()

	if got := len(list.Emails()); got != 51 {
		t.Errorf("Expected 51 entries after concurrent adds, got %d", got)
	}
}

func TestAdminList_AddIsIdempotent(t *testing.T) {
	list := NewAdminList(nil)
	if !list.Add("a@example.com") {
		t.Error("Expected first add to report true")
	}
	if list.Add("A@Example.com") {
		t.Error("Expected case-variant re-add to report false")
	}
	if len(list.Emails()) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(list.Emails()))
	}
}
