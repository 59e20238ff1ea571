package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/tilepress/tilepress/internal/repository"
)

func createProjectsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_projects",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProjectModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_projects_status_created ON projects (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_projects_batch_id ON projects (batch_id) WHERE batch_id IS NOT NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProjectModel{})
		},
	}
}
