package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/result"
	"github.com/AlejoJamC/airweave/internal/logger"
)

// TenantField is the payload field carrying an item's tenant.
const TenantField = "tenant_id"

// UserFilterConfig bounds authorization fan-out.
type UserFilterConfig struct {
	Concurrency int
	// Grace is the budget for authorization checks once the request deadline has passed.
	Grace time.Duration
}

type userFilter struct {
	authz Authorizer
	cfg   UserFilterConfig
}

// NewUserFilter removes results the principal may not read. It fails closed:
// an item whose check errors is excluded.
func NewUserFilter(authz Authorizer, cfg UserFilterConfig) Operation {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Second
	}
	return &userFilter{authz: authz, cfg: cfg}
}

func (o *userFilter) Name() string        { return StageUserFilter }
func (o *userFilter) DependsOn() []string { return []string{StageTemporalRelevance} }
func (o *userFilter) Required() bool      { return true }
func (o *userFilter) Skip(_ *State) bool  { return false }

func (o *userFilter) Run(ctx context.Context, st *State) (Apply, error) {
	// The best-effort set built before the deadline still has to be filtered.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), o.cfg.Grace)
		defer cancel()
	}

	principal := st.Query.Principal()
	readable, err := o.readableCollections(ctx, principal, st.Query.Collections())
	if err != nil {
		return nil, err
	}

	items := st.Candidates.Items()
	allowed := make([]bool, len(items))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, it := range items {
		r := it.Result()
		if !readable[r.Collection()] {
			continue
		}
		g.Go(func() error {
			ok, err := o.authz.CanRead(ctx, principal, domain.Resource{
				Kind:       domain.ResourceItem,
				ID:         r.ID(),
				Collection: r.Collection(),
				Tenant:     r.Tags()[TenantField],
			})
			if err != nil {
				logger.FromContext(ctx).Debug("Item authorization failed, excluding",
					zap.String("item", r.ID()),
					zap.Error(err),
				)
				return nil
			}
			allowed[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]result.ScoredResult, 0, len(items))
	for i, it := range items {
		if allowed[i] {
			kept = append(kept, it)
		}
	}
	filtered := result.NewRankedSet(kept)

	return func(st *State) { st.Candidates = filtered }, nil
}

// readableCollections checks each target collection once. A principal denied
// every collection is forbidden; errored checks deny the collection.
func (o *userFilter) readableCollections(
	ctx context.Context, principal domain.Principal, ids []string,
) (map[string]bool, error) {
	readable := make(map[string]bool, len(ids))
	denied := 0
	for _, id := range ids {
		ok, err := o.authz.CanRead(ctx, principal, domain.Resource{Kind: domain.ResourceCollection, ID: id})
		if err != nil {
			logger.FromContext(ctx).Warn("Collection authorization failed, excluding",
				zap.String("collection", id),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			denied++
			continue
		}
		readable[id] = true
	}
	if len(ids) > 0 && denied == len(ids) {
		return nil, fmt.Errorf("principal %q: %w", principal.ID, domain.ErrForbidden)
	}
	return readable, nil
}
