package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/scam-scanner/internal/logging"
	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/types"
)

// NormalizeEmail lower-cases and trims an email for use as an identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsPremiumClaim decides whether a caller counts as premium. Today the mere
// presence of an email is accepted as a premium claim; there is no billing
// check behind it. Kept as a named policy so a real verification can replace
// it without touching the resolver.
func IsPremiumClaim(email string) bool {
	return NormalizeEmail(email) != ""
}

// AdminList is the process-wide allow-list of admin emails. Reads go through
// an atomically swapped set so concurrent readers never observe a partial
// update; writes copy-and-replace under a mutex.
type AdminList struct {
	mu  sync.Mutex
	set atomic.Value // map[string]struct{}
}

// NewAdminList seeds an allow-list from the configured admin emails.
func NewAdminList(emails []string) *AdminList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := NormalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	l := &AdminList{}
	l.set.Store(set)
	return l
}

// Contains reports whether the normalized email is on the allow-list.
func (l *AdminList) Contains(email string) bool {
	set := l.set.Load().(map[string]struct{})
	_, ok := set[NormalizeEmail(email)]
	return ok
}

// Add puts an email on the allow-list. Returns false if it was already there.
func (l *AdminList) Add(email string) bool {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.set.Load().(map[string]struct{})
	if _, exists := old[normalized]; exists {
		return false
	}

	next := make(map[string]struct{}, len(old)+1)
	for k := range old {
		next[k] = struct{}{}
	}
	next[normalized] = struct{}{}
	l.set.Store(next)
	return true
}

// Emails returns the current allow-list, sorted.
func (l *AdminList) Emails() []string {
	set := l.set.Load().(map[string]struct{})
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// UserStore is the slice of the user repository the resolver needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	SetAdmin(ctx context.Context, email string) error
}

// Entitlement is the resolved tier signal for one request.
type Entitlement struct {
	IsAdmin   bool
	IsPremium bool
}

// Tier collapses the entitlement flags into a single tier value.
func (e Entitlement) Tier() types.UserTier {
	switch {
	case e.IsAdmin:
		return types.TierAdmin
	case e.IsPremium:
		return types.TierPremium
	default:
		return types.TierFree
	}
}

// EntitlementResolver classifies callers from their email against the user
// store and the admin allow-list.
type EntitlementResolver struct {
	users  UserStore
	admins *AdminList
}

// NewEntitlementResolver creates a new entitlement resolver
func NewEntitlementResolver(users UserStore, admins *AdminList) *EntitlementResolver {
	return &EntitlementResolver{users: users, admins: admins}
}

// Resolve determines the caller's tier. A store failure degrades to the
// in-memory allow-list signal rather than blocking the request.
func (r *EntitlementResolver) Resolve(ctx context.Context, email string) Entitlement {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return Entitlement{}
	}

	ent := Entitlement{
		IsAdmin: r.admins.Contains(normalized),
	}

	user, err := r.upsert(ctx, normalized, nil)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("email", normalized).
			Error("user store unavailable during entitlement resolution, failing open")
		return ent
	}

	ent.IsAdmin = ent.IsAdmin || user.IsAdmin
	ent.IsPremium = user.IsPremium
	return ent
}

// CreateOrUpdate upserts the user record for an email, applying optional
// field updates. Admin status only ever turns on through this path.
func (r *EntitlementResolver) CreateOrUpdate(ctx context.Context, email string, updates *models.UserUpdates) (*models.User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, &types.ServiceError{Code: "INVALID_EMAIL", Message: "email is required"}
	}
	return r.upsert(ctx, normalized, updates)
}

func (r *EntitlementResolver) upsert(ctx context.Context, normalized string, updates *models.UserUpdates) (*models.User, error) {
	user := &models.User{
		Email:   normalized,
		IsAdmin: r.admins.Contains(normalized),
	}
	if updates != nil {
		if updates.IsPremium != nil {
			user.IsPremium = *updates.IsPremium
		}
		if updates.SubscribedToBlog != nil {
			user.SubscribedToBlog = *updates.SubscribedToBlog
		}
		if updates.RequestedPremium != nil {
			user.RequestedPremium = *updates.RequestedPremium
		}
	}
	return r.users.Upsert(ctx, user)
}

// AddAdmin extends the allow-list at runtime. Only an existing admin may do
// this; the mutation is write-gated, so a store outage on the authorization
// read rejects rather than admits.
func (r *EntitlementResolver) AddAdmin(ctx context.Context, requesterEmail, newAdminEmail string) error {
	if !r.isAdminStrict(ctx, requesterEmail) {
		return &types.ServiceError{Code: "FORBIDDEN", Message: "must be admin to manage admin emails"}
	}

	normalized := NormalizeEmail(newAdminEmail)
	if normalized == "" {
		return &types.ServiceError{Code: "INVALID_EMAIL", Message: "new admin email is required"}
	}

	r.admins.Add(normalized)

	// Best effort: flag the stored user record too so admin status survives
	// a restart. The in-memory list is already authoritative for this process.
	if err := r.users.SetAdmin(ctx, normalized); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("email", normalized).
			Warn("failed to persist admin flag, allow-list updated in memory only")
	}
	return nil
}

// AdminEmails lists the allow-list for an admin requester.
func (r *EntitlementResolver) AdminEmails(ctx context.Context, requesterEmail string) ([]string, error) {
	if !r.isAdminStrict(ctx, requesterEmail) {
		return nil, &types.ServiceError{Code: "FORBIDDEN", Message: "must be admin to manage admin emails"}
	}
	return r.admins.Emails(), nil
}

// isAdminStrict checks admin status without the fail-open shortcut: the
// allow-list answers directly, and the store is only a secondary signal.
func (r *EntitlementResolver) isAdminStrict(ctx context.Context, email string) bool {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return false
	}
	if r.admins.Contains(normalized) {
		return true
	}

	user, err := r.users.GetByEmail(ctx, normalized)
	if err != nil || user == nil {
		return false
	}
	return user.IsAdmin
}
