package migrations

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	accountdata "shareme/app/internal/data/accounts"
	pagedata "shareme/app/internal/data/pages"
)

// Migrate applies the page, index and account schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "schema.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying schema")
	}

	models := append(pagedata.Models(), accountdata.Models()...)
	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("schema migration failed")
		}
		return eris.Wrap(err, "auto migrating schema")
	}

	if logger != nil {
		logger.WithFields(logFields).WithField("tables", len(models)).Info("schema migration complete")
	}

	return nil
}
