package repositories

import (
	"errors"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	// ErrEventAlreadyStored is returned when the event_id collided with the
	// unique index, i.e. the gateway redelivered a notification
	ErrEventAlreadyStored = errors.New("gateway event already stored")

	// ErrEventNotFound is returned when the event does not exist
	ErrEventNotFound = errors.New("gateway event not found")
)

const uniqueViolationCode = "23505"

// GatewayEventRepository stores inbound gateway notifications. The unique
// event_id index is the idempotency guard: re-inserting a delivered event
// fails with ErrEventAlreadyStored instead of producing a second row.
type GatewayEventRepository interface {
	// Insert persists the event. Returns ErrEventAlreadyStored when the
	// event_id was seen before.
	Insert(db *gorm.DB, event *models.GatewayEvent) error

	// FindByEventID returns the stored event or ErrEventNotFound
	FindByEventID(db *gorm.DB, eventID string) (*models.GatewayEvent, error)

	// ListUnprocessed returns unapplied events, oldest first
	ListUnprocessed(db *gorm.DB, limit int) ([]models.GatewayEvent, error)

	// MarkProcessed stamps the event as applied; orphan records that no
	// local transaction matched the reference
	MarkProcessed(db *gorm.DB, id string, orphan bool) error
}

type gatewayEventRepository struct{}

func NewGatewayEventRepository() GatewayEventRepository {
	return &gatewayEventRepository{}
}

func (r *gatewayEventRepository) Insert(db *gorm.DB, event *models.GatewayEvent) error {
	if err := db.Create(event).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEventAlreadyStored
		}
		return err
	}
	return nil
}

func (r *gatewayEventRepository) FindByEventID(db *gorm.DB, eventID string) (*models.GatewayEvent, error) {
	var event models.GatewayEvent
	if err := db.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *gatewayEventRepository) ListUnprocessed(db *gorm.DB, limit int) ([]models.GatewayEvent, error) {
	var events []models.GatewayEvent
	err := db.Where("processed = ?", false).
		Order("received_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gatewayEventRepository) MarkProcessed(db *gorm.DB, id string, orphan bool) error {
	now := time.Now()
	return db.Model(&models.GatewayEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":  true,
			"orphan":     orphan,
			"applied_at": now,
		}).Error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
