package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/resona-io/resona/internal/infrastructure/persistence/models"
	"github.com/resona-io/resona/internal/shared/logger"
)

// AutoMigrateModels lists every persistence model the schema contains.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.UserModel{},
		&models.SensorModel{},
		&models.SessionModel{},
		&models.MotionEventModel{},
		&models.SecretModel{},
		&models.ThingModel{},
		&models.DeviceCertificateModel{},
		&models.DevicePolicyModel{},
	}
}

// GormAutoMigrateStrategy migrates the schema from the struct definitions.
type GormAutoMigrateStrategy struct {
	logger logger.Interface
}

func NewGormAutoMigrateStrategy() Strategy {
	return &GormAutoMigrateStrategy{
		logger: logger.NewLogger().With("component", "migration.auto"),
	}
}

func (s *GormAutoMigrateStrategy) Migrate(db *gorm.DB, models ...interface{}) error {
	if len(models) == 0 {
		models = AutoMigrateModels()
	}
	s.logger.Infow("running gorm AutoMigrate", "models_count", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func (s *GormAutoMigrateStrategy) GetName() string {
	return "gorm_auto_migrate"
}
