package twofa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-2fa/pkg/clock"
)

const twofaFileName = "twofa.json"

// FileTwoFARepository implements TwoFARepository using file-based storage
type FileTwoFARepository struct {
	dataDir string
	twofas  map[uuid.UUID]TwoFAEntity // keyed by ID
	clock   clock.Clocker
	mutex   sync.RWMutex
}

// NewFileTwoFARepository creates a new file-based 2FA repository
func NewFileTwoFARepository(dataDir string, clk clock.Clocker) (*FileTwoFARepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}

	repo := &FileTwoFARepository{
		dataDir: dataDir,
		twofas:  make(map[uuid.UUID]TwoFAEntity),
		clock:   clk,
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

// Create2FAInit creates a new, disabled 2FA record
func (r *FileTwoFARepository) Create2FAInit(ctx context.Context, params Create2FAParams) (uuid.UUID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := findByType(r.twofas, params.LoginID, params.TwoFactorType); ok {
		return uuid.Nil, fmt.Errorf("2FA record already exists for login %s and type %s", params.LoginID, params.TwoFactorType)
	}

	twofa := newEntity(params, r.clock)
	r.twofas[twofa.ID] = twofa

	if err := r.save(); err != nil {
		// Rollback
		delete(r.twofas, twofa.ID)
		return uuid.Nil, fmt.Errorf("failed to save: %w", err)
	}
	return twofa.ID, nil
}

// Enable2FA enables 2FA for a login
func (r *FileTwoFARepository) Enable2FA(ctx context.Context, params Enable2FAParams) error {
	return r.setEnabled(params.LoginID, params.TwoFactorType, true)
}

// Disable2FA disables 2FA for a login
func (r *FileTwoFARepository) Disable2FA(ctx context.Context, params Disable2FAParams) error {
	return r.setEnabled(params.LoginID, params.TwoFactorType, false)
}

func (r *FileTwoFARepository) setEnabled(loginID uuid.UUID, twoFactorType string, enabled bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous, ok := findByType(r.twofas, loginID, twoFactorType)
	if !ok {
		return ErrTwoFANotFound
	}
	twofa := previous
	twofa.TwoFactorEnabled = enabled
	twofa.UpdatedAt = r.clock.Now().UTC()
	r.twofas[twofa.ID] = twofa

	if err := r.save(); err != nil {
		r.twofas[twofa.ID] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// Get2FAByLoginID retrieves a 2FA record by login ID and type
func (r *FileTwoFARepository) Get2FAByLoginID(ctx context.Context, params Get2FAByLoginIDParams) (TwoFAEntity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	twofa, ok := findByType(r.twofas, params.LoginID, params.TwoFactorType)
	if !ok {
		return TwoFAEntity{}, ErrTwoFANotFound
	}
	return twofa, nil
}

// FindTwoFAsByLoginID retrieves all 2FA records for a login
func (r *FileTwoFARepository) FindTwoFAsByLoginID(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return filterByLogin(r.twofas, loginID, false), nil
}

// FindEnabledTwoFAs retrieves all enabled 2FA records for a login
func (r *FileTwoFARepository) FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return filterByLogin(r.twofas, loginID, true), nil
}

// load reads 2FA data from file
func (r *FileTwoFARepository) load() error {
	data, err := os.ReadFile(filepath.Join(r.dataDir, twofaFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var twofas []TwoFAEntity
	if err := json.Unmarshal(data, &twofas); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, twofa := range twofas {
		r.twofas[twofa.ID] = twofa
	}
	return nil
}

// save writes 2FA data to file atomically
func (r *FileTwoFARepository) save() error {
	twofas := make([]TwoFAEntity, 0, len(r.twofas))
	for _, twofa := range r.twofas {
		twofas = append(twofas, twofa)
	}

	data, err := json.MarshalIndent(twofas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, twofaFileName+".tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, twofaFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
