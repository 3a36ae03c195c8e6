package remote

import (
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"todo-sync/internal/models"
)

// LocalCategorySource resolves locally-issued category ids to their
// records; the local category repository satisfies it.
type LocalCategorySource interface {
	Get(id string) (*models.Category, bool)
}

// IDMapper is the persisted localID-to-remoteID mapping, populated during
// sync and consulted before any name-based lookup.
type IDMapper interface {
	RemoteID(localID string) (string, bool)
	Record(localID, remoteID string)
}

// CategoryResolver translates task category references from the local id
// space into the remote one, so tasks written remotely never point at ids
// the remote service has never issued.
type CategoryResolver struct {
	locals LocalCategorySource
	idmap  IDMapper
	logger zerolog.Logger
}

func NewCategoryResolver(locals LocalCategorySource, idmap IDMapper, logger zerolog.Logger) *CategoryResolver {
	return &CategoryResolver{locals: locals, idmap: idmap, logger: logger}
}

// isRemoteID reports whether the id belongs to the remote id space, which
// issues UUIDs. Local ids are unix-millis plus a random suffix.
func isRemoteID(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}

// resolve maps a nullable category reference into the remote id space:
//
//  1. remote-native ids pass through,
//  2. a persisted id-map entry wins,
//  3. otherwise the local record's name is matched against the remote
//     table, creating the category remotely when absent,
//  4. a dangling local reference degrades to null rather than failing the
//     task write.
//
// Runs inside a Client.run callback; db errors bubble up to become remote
// operation failures.
func (r *CategoryResolver) resolve(db *gorm.DB, userID string, categoryID *string) (*string, error) {
	if categoryID == nil {
		return nil, nil
	}
	if isRemoteID(*categoryID) {
		return categoryID, nil
	}
	if remoteID, ok := r.idmap.RemoteID(*categoryID); ok {
		return &remoteID, nil
	}

	local, ok := r.locals.Get(*categoryID)
	if !ok {
		r.logger.Warn().Str("categoryId", *categoryID).
			Msg("task references unknown local category, storing uncategorized")
		return nil, nil
	}

	var existing models.Category
	err := db.Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(local.Name)).
		First(&existing).Error
	switch {
	case err == nil:
		r.idmap.Record(local.ID, existing.ID)
		return &existing.ID, nil
	case err == gorm.ErrRecordNotFound:
		created := models.Category{
			ID:        uuid.Must(uuid.NewV4()).String(),
			UserID:    userID,
			Name:      local.Name,
			Color:     local.Color,
			CreatedAt: local.CreatedAt,
			Order:     nextCategoryOrder(db, userID),
		}
		if err := db.Create(&created).Error; err != nil {
			return nil, err
		}
		r.idmap.Record(local.ID, created.ID)
		return &created.ID, nil
	default:
		return nil, err
	}
}

func nextCategoryOrder(db *gorm.DB, userID string) int {
	var next int
	db.Model(&models.Category{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(category_order) + 1, 0)").
		Scan(&next)
	return next
}

func nextTaskOrder(db *gorm.DB, userID string) int {
	var next int
	db.Model(&models.Task{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(task_order) + 1, 0)").
		Scan(&next)
	return next
}
