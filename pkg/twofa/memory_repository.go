package twofa

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-2fa/pkg/clock"
)

// MemoryTwoFARepository keeps records for the lifetime of the process.
type MemoryTwoFARepository struct {
	mu     sync.RWMutex
	twofas map[uuid.UUID]TwoFAEntity
	clock  clock.Clocker
}

func NewMemoryTwoFARepository(clk clock.Clocker) *MemoryTwoFARepository {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryTwoFARepository{
		twofas: make(map[uuid.UUID]TwoFAEntity),
		clock:  clk,
	}
}

func (r *MemoryTwoFARepository) Create2FAInit(ctx context.Context, params Create2FAParams) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := findByType(r.twofas, params.LoginID, params.TwoFactorType); ok {
		return uuid.Nil, fmt.Errorf("2FA record already exists for login %s and type %s", params.LoginID, params.TwoFactorType)
	}
	entity := newEntity(params, r.clock)
	r.twofas[entity.ID] = entity
	return entity.ID, nil
}

func (r *MemoryTwoFARepository) Enable2FA(ctx context.Context, params Enable2FAParams) error {
	return r.setEnabled(params.LoginID, params.TwoFactorType, true)
}

func (r *MemoryTwoFARepository) Disable2FA(ctx context.Context, params Disable2FAParams) error {
	return r.setEnabled(params.LoginID, params.TwoFactorType, false)
}

func (r *MemoryTwoFARepository) setEnabled(loginID uuid.UUID, twoFactorType string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity, ok := findByType(r.twofas, loginID, twoFactorType)
	if !ok {
		return ErrTwoFANotFound
	}
	entity.TwoFactorEnabled = enabled
	entity.UpdatedAt = r.clock.Now().UTC()
	r.twofas[entity.ID] = entity
	return nil
}

func (r *MemoryTwoFARepository) Get2FAByLoginID(ctx context.Context, params Get2FAByLoginIDParams) (TwoFAEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := findByType(r.twofas, params.LoginID, params.TwoFactorType)
	if !ok {
		return TwoFAEntity{}, ErrTwoFANotFound
	}
	return entity, nil
}

func (r *MemoryTwoFARepository) FindTwoFAsByLoginID(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterByLogin(r.twofas, loginID, false), nil
}

func (r *MemoryTwoFARepository) FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterByLogin(r.twofas, loginID, true), nil
}

func newEntity(params Create2FAParams, clk clock.Clocker) TwoFAEntity {
	now := clk.Now().UTC()
	return TwoFAEntity{
		ID:              uuid.New(),
		LoginID:         params.LoginID,
		TwoFactorType:   params.TwoFactorType,
		TwoFactorSecret: params.TwoFactorSecret,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func findByType(twofas map[uuid.UUID]TwoFAEntity, loginID uuid.UUID, twoFactorType string) (TwoFAEntity, bool) {
	for _, twofa := range twofas {
		if twofa.LoginID == loginID && twofa.TwoFactorType == twoFactorType {
			return twofa, true
		}
	}
	return TwoFAEntity{}, false
}

// filterByLogin returns the records of loginID ordered by creation time.
func filterByLogin(twofas map[uuid.UUID]TwoFAEntity, loginID uuid.UUID, enabledOnly bool) []TwoFAEntity {
	res := make([]TwoFAEntity, 0)
	for _, twofa := range twofas {
		if twofa.LoginID != loginID || (enabledOnly && !twofa.TwoFactorEnabled) {
			continue
		}
		res = append(res, twofa)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].TwoFactorType < res[j].TwoFactorType
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}
