package seeders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"lab-request-system/pkg/constants"
	"lab-request-system/pkg/utils"
)

type seedUser struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     constants.UserRole
}

var seedUsers = []seedUser{
	{"admin", "admin@lab.local", "admin123", "Administrator", constants.RoleAdmin},
	{"chemist1", "chemist1@lab.local", "chemist123", "Anna Petrova", constants.RoleChemist},
	{"chemist2", "chemist2@lab.local", "chemist123", "Boris Ivanov", constants.RoleChemist},
	{"analyst1", "analyst1@lab.local", "analyst123", "Clara Schmidt", constants.RoleAnalyst},
	{"analyst2", "analyst2@lab.local", "analyst123", "David Mueller", constants.RoleAnalyst},
}

type seedType struct {
	Code        string
	Name        string
	Description string
}

var seedTypes = []seedType{
	{"HPLC", "HPLC", "High-performance liquid chromatography purity check"},
	{"NMR", "NMR Spectroscopy", "Proton and carbon NMR structure confirmation"},
	{"LCMS", "LC-MS", "Liquid chromatography mass spectrometry"},
	{"PREP_HPLC", "Preparative HPLC", "Preparative purification run"},
	{"GCMS", "GC-MS", "Gas chromatography mass spectrometry"},
	{"IR", "IR Spectroscopy", "Infrared spectroscopy"},
	{"UV_VIS", "UV-Vis Spectroscopy", "Ultraviolet-visible absorption spectrum"},
	{"CHNS", "Elemental Analysis", "CHNS elemental composition"},
	{"TLC", "TLC", "Thin-layer chromatography"},
	{"MELTING_POINT", "Melting Point", "Melting point determination"},
}

// Run inserts the default users and the analysis type catalog. Existing rows
// are left untouched, so seeding is safe to repeat.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	for _, u := range seedUsers {
		hash, err := utils.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.Username, err)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO users (username, email, password_hash, full_name, role, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (username) DO NOTHING`,
			u.Username, u.Email, hash, u.FullName, u.Role)
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Username, err)
		}
	}
	logger.Info("users seeded", zap.Int("count", len(seedUsers)))

	for _, t := range seedTypes {
		_, err := pool.Exec(ctx, `
			INSERT INTO analysis_types (code, name, description, is_active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (code) DO NOTHING`,
			t.Code, t.Name, t.Description)
		if err != nil {
			return fmt.Errorf("failed to seed analysis type %s: %w", t.Code, err)
		}
	}
	logger.Info("analysis types seeded", zap.Int("count", len(seedTypes)))

	return nil
}
