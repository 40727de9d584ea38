package service

import (
	"context"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/store"
	"vintrade-orders/internal/util"

	"go.uber.org/zap"
)

// DashboardService computes per-role rollups of the current order state.
// Rollups are derived, never authoritative: they are recomputed from the
// orders table on each read, with a short-TTL cache in front.
type DashboardService struct {
	store  DashboardStore
	cache  DashboardCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewDashboardService creates the dashboard aggregator. cache may be nil.
func NewDashboardService(store DashboardStore, cache DashboardCache, ttl time.Duration) *DashboardService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DashboardService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// Operator returns the platform-wide rollup.
func (s *DashboardService) Operator(ctx context.Context, actor models.Actor) (*models.Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "Dashboard.Operator")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, "operator", models.RoleOperator, "", store.OrderScope{}, false)
}

// Partner returns the rollup for one wine partner.
func (s *DashboardService) Partner(ctx context.Context, actor models.Actor, partnerID string) (*models.Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "Dashboard.Partner")
	defer span.End()

	if !actor.Operator() && (actor.Role != models.RolePartner || actor.OrgID != partnerID) {
		return nil, apperr.Forbidden("actor %s cannot view partner %s dashboard", actor.ID, partnerID)
	}
	return s.snapshot(ctx, "partner:"+partnerID, models.RolePartner, partnerID,
		store.OrderScope{PartnerID: partnerID}, false)
}

// Distributor returns the rollup for one distributor, including the count of
// items waiting on a receipt confirmation.
func (s *DashboardService) Distributor(ctx context.Context, actor models.Actor, distributorID string) (*models.Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "Dashboard.Distributor")
	defer span.End()

	if !actor.Operator() && (actor.Role != models.RoleDistributor || actor.OrgID != distributorID) {
		return nil, apperr.Forbidden("actor %s cannot view distributor %s dashboard", actor.ID, distributorID)
	}
	return s.snapshot(ctx, "distributor:"+distributorID, models.RoleDistributor, distributorID,
		store.OrderScope{DistributorID: distributorID}, true)
}

func (s *DashboardService) snapshot(ctx context.Context, key string, role models.Role, orgID string, scope store.OrderScope, withReceipts bool) (*models.Dashboard, error) {
	if s.cache != nil {
		if d, ok := s.cache.Get(ctx, key); ok {
			util.DashboardCacheHitsTotal.WithLabelValues("hit").Inc()
			return d, nil
		}
		util.DashboardCacheHitsTotal.WithLabelValues("miss").Inc()
	}

	rollup, err := s.store.OrderRollup(ctx, scope)
	if err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		Role:        role,
		OrgID:       orgID,
		Rollup:      *rollup,
		GeneratedAt: time.Now(),
	}
	if withReceipts {
		count, err := s.store.ItemsAwaitingReceipt(ctx, orgID)
		if err != nil {
			return nil, err
		}
		d.ItemsAwaitingReceipt = count
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, d, s.ttl)
	}
	s.logger.Debug("Dashboard recomputed", zap.String("key", key))
	return d, nil
}
