package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/internal/repository"
	"codepath_backend/internal/util"

	"gorm.io/gorm"
)

type LessonService struct {
	Lessons *repository.LessonRepository
}

func NewLessonService(lessons *repository.LessonRepository) *LessonService {
	return &LessonService{Lessons: lessons}
}

func (s *LessonService) List() ([]model.Lesson, error) {
	return s.Lessons.List()
}

func (s *LessonService) Get(id uint) (*model.Lesson, error) {
	lesson, err := s.Lessons.FindByID(id)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	if !lesson.IsPublished {
		return nil, util.ErrLessonNotFound
	}
	return lesson, nil
}
