package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/models"
)

// audit appends an audit row inside tx.
func audit(tx *gorm.DB, userID uint, action, entity string, entityID uint, details any) error {
	entry := models.AuditLog{UserID: userID, Action: action, Entity: entity, EntityID: entityID}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = string(raw)
	}
	return tx.Create(&entry).Error
}
