package target

import (
	"context"

	"github.com/turtacn/aivis/pkg/types/common"
)

// Repository is the persistence port for targets. Implementations live in
// internal/infrastructure/database (Postgres) and memstore (in-memory for
// the CLI and tests).
type Repository interface {
	Create(ctx context.Context, t *Target) error
	GetByID(ctx context.Context, id common.ID) (*Target, error)
	Update(ctx context.Context, t *Target) error
	Delete(ctx context.Context, id common.ID) error
	List(ctx context.Context, limit, offset int) ([]*Target, error)
}
