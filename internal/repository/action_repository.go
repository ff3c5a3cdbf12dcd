package repository

import (
	"codepath_backend/internal/model"

	"gorm.io/gorm"
)

// ActionRepository 自适应动作日志。所有按用户的查询都带 user_id 条件，
// 属主校验在 SQL 层完成，不泄露他人动作是否存在
type ActionRepository struct {
	DB *gorm.DB
}

func NewActionRepository(db *gorm.DB) *ActionRepository {
	return &ActionRepository{DB: db}
}

func (r *ActionRepository) Create(action *model.AdaptiveAction) error {
	return r.DB.Create(action).Error
}

// FindOldestPending 用户最早的未完成动作（FIFO 消费）
func (r *ActionRepository) FindOldestPending(userID uint) (*model.AdaptiveAction, error) {
	var action model.AdaptiveAction
	err := r.DB.Where("user_id = ? AND is_completed = ?", userID, false).
		Order("created_at ASC, id ASC").
		First(&action).Error
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// FindPendingOwned 按属主查找未完成动作；他人的、已完成的都视为不存在
func (r *ActionRepository) FindPendingOwned(userID, actionID uint) (*model.AdaptiveAction, error) {
	var action model.AdaptiveAction
	err := r.DB.Where("id = ? AND user_id = ? AND is_completed = ?", actionID, userID, false).
		First(&action).Error
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// Complete 把属主的未完成动作置为已完成，返回受影响行数。
// 0 行意味着动作不存在、不属于该用户或已完成，三种情况对外同样表现为 404
func (r *ActionRepository) Complete(userID, actionID uint) (int64, error) {
	result := r.DB.Model(&model.AdaptiveAction{}).
		Where("id = ? AND user_id = ? AND is_completed = ?", actionID, userID, false).
		Update("is_completed", true)
	return result.RowsAffected, result.Error
}
