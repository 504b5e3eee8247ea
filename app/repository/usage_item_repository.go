package repository

import (
	"github.com/plexora/meterpay/app/models"
	"gorm.io/gorm"
)

// usageItemRepository implements the UsageItemRepository interface
type usageItemRepository struct {
	db *gorm.DB
}

// NewUsageItemRepository creates a new usage item repository instance
func NewUsageItemRepository(db *gorm.DB) UsageItemRepository {
	return &usageItemRepository{db: db}
}

// Create creates a new usage item in the database
func (r *usageItemRepository) Create(item *models.UsageItem) error {
	return r.db.Create(item).Error
}

// GetByUUID retrieves a usage item by its public id
func (r *usageItemRepository) GetByUUID(uuid string) (*models.UsageItem, error) {
	var item models.UsageItem
	err := r.db.Where("uuid = ?", uuid).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListUnsettled returns unsettled items in creation order. The order does not
// affect the batch sum but keeps audit replays stable.
func (r *usageItemRepository) ListUnsettled(userID uint, workspaceID string) ([]models.UsageItem, error) {
	var items []models.UsageItem
	err := r.db.
		Where("user_id = ? AND workspace_id = ? AND settled_at IS NULL", userID, workspaceID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// CountUnsettled returns the number of unsettled items for a user/workspace
func (r *usageItemRepository) CountUnsettled(userID uint, workspaceID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.UsageItem{}).
		Where("user_id = ? AND workspace_id = ? AND settled_at IS NULL", userID, workspaceID).
		Count(&count).Error
	return count, err
}
