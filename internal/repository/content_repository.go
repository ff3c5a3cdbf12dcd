package repository

import (
	"codepath_backend/internal/model"

	"gorm.io/gorm"
)

// ContentRepository 干预内容的读写：补救片段与生成的桥接题
type ContentRepository struct {
	DB *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{DB: db}
}

func (r *ContentRepository) CreateFragment(fragment *model.ContentFragment) error {
	return r.DB.Create(fragment).Error
}

func (r *ContentRepository) FindFragmentByID(id uint) (*model.ContentFragment, error) {
	var fragment model.ContentFragment
	err := r.DB.First(&fragment, id).Error
	if err != nil {
		return nil, err
	}
	return &fragment, nil
}

// FindFragmentForConcept 选取已有的补救片段，优先匹配课程，其次只匹配知识点
func (r *ContentRepository) FindFragmentForConcept(lessonID uint, conceptKey string) (*model.ContentFragment, error) {
	var fragment model.ContentFragment
	err := r.DB.Where("lesson_id = ? AND concept_key = ?", lessonID, conceptKey).
		First(&fragment).Error
	if err == gorm.ErrRecordNotFound {
		err = r.DB.Where("concept_key = ?", conceptKey).First(&fragment).Error
	}
	if err != nil {
		return nil, err
	}
	return &fragment, nil
}

func (r *ContentRepository) CreateProblem(problem *model.GeneratedProblem) error {
	return r.DB.Create(problem).Error
}

func (r *ContentRepository) FindProblemByID(id uint) (*model.GeneratedProblem, error) {
	var problem model.GeneratedProblem
	err := r.DB.First(&problem, id).Error
	if err != nil {
		return nil, err
	}
	return &problem, nil
}
