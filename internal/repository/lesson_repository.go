package repository

import (
	"codepath_backend/internal/model"

	"gorm.io/gorm"
)

// LessonRepository 课程读取。知识点顺序一律按持久化的 position 列排序
type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) List() ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("is_published = ?", true).
		Preload("Concepts", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) FindByID(id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.
		Preload("Concepts", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&lesson, id).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ConceptWeights 课程的知识点权重列表，按 position 升序
func (r *LessonRepository) ConceptWeights(lessonID uint) ([]model.LessonConcept, error) {
	var weights []model.LessonConcept
	err := r.DB.Where("lesson_id = ?", lessonID).
		Order("position ASC").
		Find(&weights).Error
	return weights, err
}
