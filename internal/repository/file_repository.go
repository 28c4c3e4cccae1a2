package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docqa/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(rec *model.FileRecord) error {
	if err := r.db.Create(rec).Error; err != nil {
		return fmt.Errorf("create file record failed: %w", err)
	}
	return nil
}

func (r *FileRepository) List() ([]model.FileRecord, error) {
	var list []model.FileRecord
	if err := r.db.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list file records failed: %w", err)
	}
	return list, nil
}

// GetByID returns nil, nil when no record exists.
func (r *FileRepository) GetByID(id string) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := r.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file record failed: %w", err)
	}
	return &rec, nil
}

func (r *FileRepository) UpdateStatus(id, status, errText string) error {
	err := r.db.Model(&model.FileRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error": errText}).Error
	if err != nil {
		return fmt.Errorf("update file status failed: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteByID(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.FileRecord{}).Error; err != nil {
		return fmt.Errorf("delete file record failed: %w", err)
	}
	return nil
}
