package repository

import (
	"github.com/plexora/meterpay/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	UpdateCustomerRef(userID uint, customerID string) error
	UpdateCardDisplay(userID uint, last4, brand string) error
	TouchAPIKeyUsage(userID uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// UsageItemRepository defines the interface for usage-item database operations
type UsageItemRepository interface {
	Create(item *models.UsageItem) error
	GetByUUID(uuid string) (*models.UsageItem, error)
	// ListUnsettled returns the unsettled items for a user/workspace pair in
	// creation order, for stable audit replay.
	ListUnsettled(userID uint, workspaceID string) ([]models.UsageItem, error)
	CountUnsettled(userID uint, workspaceID string) (int64, error)
}

// SettlementRepository defines the interface for settlement persistence.
type SettlementRepository interface {
	// SettleItems atomically inserts the history row and stamps the given
	// items as settled by it. Either both happen or neither does.
	SettleItems(history *models.SettlementHistory, itemIDs []uint) error
	// InsertHistory writes a history row without touching any usage items
	// (failed or pending attempts).
	InsertHistory(history *models.SettlementHistory) error
	UpdateHistoryStatus(id uint, status string) error
	ListHistory(userID uint, workspaceID string, limit int) ([]models.SettlementHistory, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User       UserRepository
	UsageItem  UsageItemRepository
	Settlement SettlementRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		UsageItem:  NewUsageItemRepository(db),
		Settlement: NewSettlementRepository(db),
	}
}
