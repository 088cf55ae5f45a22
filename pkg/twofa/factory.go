package twofa

import (
	"fmt"

	"github.com/tendant/simple-2fa/pkg/clock"
)

// RepositoryConfig contains configuration for creating a 2FA repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
	// DataDir is required for file-based repositories
	DataDir string
	Clock   clock.Clocker
}

// NewTwoFARepository creates a new 2FA repository based on the persistence type
func NewTwoFARepository(persistenceType string, config RepositoryConfig) (TwoFARepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresTwoFARepository(config.DB), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileTwoFARepository(config.DataDir, config.Clock)
	case "memory", "":
		return NewMemoryTwoFARepository(config.Clock), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
