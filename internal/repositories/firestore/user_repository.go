package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/roasworks/attribution/internal/domain"
	pfirestore "github.com/roasworks/attribution/internal/platform/firestore"
)

const (
	userCollection   = "users"
	eventsCollection = "evts"
)

// UserRepository resolves customer profiles stored in Firestore. Profile
// documents carry an "ids" array holding every identifier ever seen for the
// customer (emails, IP addresses, fingerprints).
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base, provider: provider}, nil
}

// FindByIdentifiers returns every profile whose identifier set intersects the
// given values. Lookups are chunked to respect the disjunction limit, and
// profiles matched by more than one chunk are deduplicated by id.
func (r *UserRepository) FindByIdentifiers(ctx context.Context, identifiers []string) ([]domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("user repository not initialised")
	}

	docs, err := r.base.QueryChunked(ctx, identifiers, func(query firestore.Query, chunk []string) firestore.Query {
		return query.Where("ids", "array-contains-any", chunk)
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(docs))
	profiles := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		seen[doc.ID] = struct{}{}
		profiles = append(profiles, toDomainProfile(doc.ID, doc.Data))
	}
	return profiles, nil
}

// Events lists the raw tracking events captured under one profile.
func (r *UserRepository) Events(ctx context.Context, profileID string) ([]domain.RawEvent, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("user repository not initialised")
	}
	trimmed := strings.TrimSpace(profileID)
	if trimmed == "" {
		return nil, errors.New("profile id is required")
	}

	events := pfirestore.NewBaseRepository[domain.RawEvent](
		r.provider,
		fmt.Sprintf("%s/%s/%s", userCollection, trimmed, eventsCollection),
		nil, nil,
	)
	docs, err := events.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RawEvent, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data)
	}
	return out, nil
}

type userDocument struct {
	Email string   `firestore:"email"`
	IDs   []string `firestore:"ids"`
}

func toDomainProfile(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		UserID: id,
		Email:  strings.TrimSpace(doc.Email),
		IDs:    domain.UniqueStrings(doc.IDs),
	}
}
