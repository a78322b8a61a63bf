package recipient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
)

// RefKind discriminates the two recipient reference shapes.
type RefKind int

const (
	// RefByID is a bare user identifier.
	RefByID RefKind = iota
	// RefByPath is a reference-like value carrying a document path,
	// e.g. "Users/abc123", from which the identifier is derived.
	RefByPath
)

// Ref is a recipient reference in one of its two shapes.
type Ref struct {
	Kind RefKind
	ID   string
	Path string
}

// ByID builds a bare-identifier reference.
func ByID(id string) Ref {
	return Ref{Kind: RefByID, ID: id}
}

// ByPath builds a path-bearing reference.
func ByPath(path string) Ref {
	return Ref{Kind: RefByPath, Path: path}
}

// FromString classifies a raw reference string: values containing a
// path separator are treated as document paths, anything else as a
// bare identifier.
func FromString(raw string) Ref {
	if strings.Contains(raw, "/") {
		return ByPath(raw)
	}
	return ByID(raw)
}

// UserID derives the user identifier from the reference. For paths the
// identifier is the last segment.
func (r Ref) UserID() string {
	if r.Kind == RefByID {
		return r.ID
	}
	path := strings.Trim(r.Path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// Resolver normalizes heterogeneous recipient references into canonical
// user records. Resolved users are cached briefly because one fan-out
// burst tends to hit the same users repeatedly.
type Resolver struct {
	users repository.UserRepository
	cache *gocache.Cache
}

func NewResolver(users repository.UserRepository) *Resolver {
	return &Resolver{
		users: users,
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

// Resolve turns refs into a deduplicated list of users, preserving
// first-seen order. References whose user record does not exist are
// dropped without error: assignees may have been deleted since they
// were attached to a task. excludeID, when non-empty, removes that user
// from the result. Store failures other than a missing row propagate.
func (r *Resolver) Resolve(ctx context.Context, refs []Ref, excludeID string) ([]*model.User, error) {
	seen := make(map[string]bool, len(refs))
	users := make([]*model.User, 0, len(refs))

	for _, ref := range refs {
		id := ref.UserID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if excludeID != "" && id == excludeID {
			continue
		}

		user, err := r.lookup(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Debug().Str("user_id", id).Msg("skipping unresolvable recipient")
				continue
			}
			return nil, fmt.Errorf("failed to resolve recipient %s: %w", id, err)
		}

		users = append(users, user)
	}

	return users, nil
}

func (r *Resolver) lookup(ctx context.Context, id string) (*model.User, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*model.User), nil
	}

	user, err := r.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.SetDefault(id, user)
	return user, nil
}
