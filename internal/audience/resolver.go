// Package audience turns an AudienceSpec into the concrete list of people a
// message is addressed to.
package audience

import (
	"context"
	"fmt"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/model"
)

const opResolve = "resolve audience"

// Directory is the read-only member lookup the resolver depends on. Every
// method except ByIDs returns only members whose status is active.
type Directory interface {
	ActiveAll(ctx context.Context) ([]*model.Member, error)
	ActiveByGroup(ctx context.Context, name string) ([]*model.Member, error)
	ActiveByMinistry(ctx context.Context, name string) ([]*model.Member, error)
	ActiveByCustomGroup(ctx context.Context, groupID int64) ([]*model.Member, error)
	ByIDs(ctx context.Context, ids []int64) ([]*model.Member, error)
}

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the deduplicated recipients of spec in first-seen order.
// An empty audience is not an error here; callers decide what it means.
func (r *Resolver) Resolve(ctx context.Context, spec model.AudienceSpec) ([]model.Recipient, error) {
	var (
		members []*model.Member
		err     error
	)

	switch s := spec.(type) {
	case model.AllMembers:
		members, err = r.dir.ActiveAll(ctx)
	case model.GroupAudience:
		members, err = r.dir.ActiveByGroup(ctx, s.Name)
	case model.MinistryAudience:
		members, err = r.dir.ActiveByMinistry(ctx, s.Name)
	case model.CustomGroupAudience:
		members, err = r.dir.ActiveByCustomGroup(ctx, s.GroupID)
	case model.IndividualAudience:
		members, err = r.individuals(ctx, s.MemberIDs)
	case nil:
		return nil, apperr.Validation(opResolve, "audience is required")
	default:
		return nil, apperr.Validation(opResolve, "unsupported audience %T", spec)
	}
	if err != nil {
		return nil, apperr.Persistence(opResolve, fmt.Errorf("%s: %w", spec.Type(), err))
	}

	return dedup(members), nil
}

// individuals keeps the order the ids were given in.
func (r *Resolver) individuals(ctx context.Context, ids []int64) ([]*model.Member, error) {
	found, err := r.dir.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Member, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	ordered := make([]*model.Member, 0, len(found))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

func dedup(members []*model.Member) []model.Recipient {
	seen := make(map[int64]struct{}, len(members))
	out := make([]model.Recipient, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m.Recipient())
	}
	return out
}
