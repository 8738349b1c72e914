package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// GormStore implements Store on top of gorm
type GormStore struct {
	db *gorm.DB
}

// errDuplicateExternalID rolls the insert transaction back before the
// already-exists outcome is reported to the caller
var errDuplicateExternalID = errors.New("duplicate external id")

// NewGormStore opens the database and runs migrations
func NewGormStore(driver, dsn string) (*GormStore, error) {
	gormDB, err := OpenGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	store := &GormStore{db: gormDB}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GormStore) migrate() error {
	return s.db.AutoMigrate(&sessionRow{}, &messageRow{}, &approvalRow{})
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.Session) error {
	row := sessionRowFromRecord(*session)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	rec := row.toRecord()
	return &rec, nil
}

func (s *GormStore) ListSessions(ctx context.Context, userID string, limit int) ([]models.Session, error) {
	query := s.db.WithContext(ctx).Model(&sessionRow{}).Order("last_activity_at DESC")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []sessionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]models.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// UpdateSessionLocked serializes session mutation. Postgres takes a real
// SELECT ... FOR UPDATE row lock; sqlite serializes writers at the database
// level, so the transaction alone is sufficient there.
func (s *GormStore) UpdateSessionLocked(ctx context.Context, id string, fn func(session *models.Session) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row sessionRow
		if err := query.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}

		rec := row.toRecord()
		if err := fn(&rec); err != nil {
			return err
		}

		rec.UpdatedAt = time.Now().UTC()
		updated := sessionRowFromRecord(rec)
		if err := tx.Model(&sessionRow{}).Where("id = ?", id).Select("*").Omit("id", "created_at").Updates(&updated).Error; err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
}

func (s *GormStore) CreateMessage(ctx context.Context, message *models.Message) error {
	row, err := messageRowFromRecord(*message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *GormStore) CreateMessageIdempotent(ctx context.Context, message *models.Message) (bool, error) {
	if message.ExternalID == "" {
		return false, fmt.Errorf("idempotent insert requires external id")
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&messageRow{}).
			Where("session_id = ? AND external_id = ?", message.SessionID, message.ExternalID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("idempotency lookup: %w", err)
		}
		if count > 0 {
			return nil
		}

		row, err := messageRowFromRecord(*message)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			// concurrent duplicate delivery can pass the lookup in both
			// transactions; the unique index on (session_id, external_id)
			// makes the loser land here
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateExternalID
			}
			return fmt.Errorf("create message: %w", err)
		}
		created = true
		return nil
	})
	if errors.Is(err, errDuplicateExternalID) {
		return false, nil
	}
	return created, err
}

func (s *GormStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var row messageRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	rec, err := row.toRecord()
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &rec, nil
}

func (s *GormStore) ListMessages(ctx context.Context, sessionID string, limit int, before time.Time) ([]models.Message, error) {
	query := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC")
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var rows []messageRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	// limit keeps the newest N while preserving ascending order
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rowsToMessages(rows)
}

func (s *GormStore) ListTurnMessages(ctx context.Context, sessionID, turnID string) ([]models.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("session_id = ? AND turn_id = ?", sessionID, turnID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list turn messages: %w", err)
	}
	return rowsToMessages(rows)
}

func (s *GormStore) SuccessfulToolCapabilities(ctx context.Context, sessionID, turnID string) (map[string]bool, error) {
	query := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("session_id = ? AND role = ? AND success = ?", sessionID, string(models.RoleTool), true)
	if turnID != "" {
		query = query.Where("turn_id = ?", turnID)
	}

	var names []string
	if err := query.Distinct("capability_name").Pluck("capability_name", &names).Error; err != nil {
		return nil, fmt.Errorf("successful tool lookup: %w", err)
	}

	out := make(map[string]bool, len(names))
	for _, name := range names {
		if name != "" {
			out[name] = true
		}
	}
	return out, nil
}

func (s *GormStore) ClearPendingConfirmation(ctx context.Context, messageID string) error {
	res := s.db.WithContext(ctx).Model(&messageRow{}).
		Where("id = ?", messageID).
		Update("pending_confirmation", "")
	if res.Error != nil {
		return fmt.Errorf("clear pending confirmation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateApproval(ctx context.Context, approval *models.ApprovalRequest) error {
	row := approvalRowFromRecord(*approval)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

func (s *GormStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var row approvalRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	rec := row.toRecord()
	return &rec, nil
}

func (s *GormStore) UpdateApprovalDecision(ctx context.Context, id string, status models.ApprovalStatus, decidedBy string) (*models.ApprovalRequest, error) {
	var out models.ApprovalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row approvalRow
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get approval: %w", err)
		}
		if row.Status != string(models.ApprovalPending) {
			return fmt.Errorf("approval %s is not pending (status %s)", id, row.Status)
		}

		now := time.Now().UTC()
		row.Status = string(status)
		row.DecidedBy = decidedBy
		row.DecidedAt = &now
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("update approval: %w", err)
		}
		out = row.toRecord()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func rowsToMessages(rows []messageRow) ([]models.Message, error) {
	out := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("decode message %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
