package permkit

import (
	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// Migrations returns all database migrations required for permkit.
// Use db.Migrate(ctx, service.Migrations()) to run migrations.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "permkit-001",
			Description: "Create instances table",
			SQL: `
                CREATE TABLE IF NOT EXISTS instances (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL UNIQUE,
                    url_name TEXT NOT NULL UNIQUE,
                    default_role_id UUID,
                    is_public BOOLEAN NOT NULL DEFAULT false,
                    features JSONB,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-002",
			Description: "Create roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    instance_id UUID NOT NULL REFERENCES instances(id),
                    name TEXT NOT NULL,
                    is_default BOOLEAN NOT NULL DEFAULT false,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (instance_id, name)
                )`,
		},
		{
			ID:          "permkit-003",
			Description: "Create role_grants table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_grants (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
                    model TEXT NOT NULL,
                    field TEXT NOT NULL DEFAULT '',
                    level TEXT NOT NULL,
                    owner_only BOOLEAN NOT NULL DEFAULT false,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-004",
			Description: "Create assignments table",
			SQL: `
                CREATE TABLE IF NOT EXISTS assignments (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    user_id TEXT NOT NULL,
                    instance_id UUID NOT NULL REFERENCES instances(id),
                    role_id UUID NOT NULL REFERENCES roles(id),
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (user_id, instance_id)
                )`,
		},
		{
			ID:          "permkit-005",
			Description: "Create grant_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS grant_audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL DEFAULT '',
                    action TEXT NOT NULL,
                    instance_id TEXT NOT NULL,
                    role_id TEXT,
                    role_name TEXT,
                    target_user_id TEXT,
                    model TEXT,
                    field TEXT,
                    level TEXT,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT,
                    metadata JSONB
                )`,
		},
		{
			ID:          "permkit-006",
			Description: "Create map feature tables",
			SQL: `
                CREATE TABLE IF NOT EXISTS plots (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    instance_id UUID NOT NULL REFERENCES instances(id),
                    address TEXT,
                    width DOUBLE PRECISION,
                    length DOUBLE PRECISION,
                    geometry TEXT,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE TABLE IF NOT EXISTS trees (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    instance_id UUID NOT NULL REFERENCES instances(id),
                    plot_id UUID NOT NULL REFERENCES plots(id),
                    owner_id TEXT,
                    species TEXT,
                    diameter DOUBLE PRECISION,
                    height DOUBLE PRECISION,
                    date_planted TIMESTAMPTZ,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                );
                CREATE TABLE IF NOT EXISTS photos (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    instance_id UUID NOT NULL REFERENCES instances(id),
                    tree_id UUID REFERENCES trees(id),
                    owner_id TEXT,
                    caption TEXT,
                    image_url TEXT,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-007",
			Description: "Create lookup indexes",
			SQL: `
                CREATE INDEX IF NOT EXISTS idx_roles_instance ON roles (instance_id);
                CREATE INDEX IF NOT EXISTS idx_role_grants_role ON role_grants (role_id);
                CREATE INDEX IF NOT EXISTS idx_assignments_user ON assignments (user_id);
                CREATE INDEX IF NOT EXISTS idx_assignments_instance ON assignments (instance_id);
                CREATE INDEX IF NOT EXISTS idx_audit_instance ON grant_audit_log (instance_id);
                CREATE INDEX IF NOT EXISTS idx_audit_actor ON grant_audit_log (actor_id)`,
		},
	}
}
