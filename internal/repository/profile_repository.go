package repository

import (
	"codepath_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 认知档案的持久化。档案是核心里唯一可变的共享资源，
// 写入必须按用户串行化，且同一提交的分析只允许生效一次
type ProfileRepository struct {
	DB *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

func (r *ProfileRepository) FindByUser(userID uint) (*model.CognitiveProfile, error) {
	var profile model.CognitiveProfile
	err := r.DB.Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ApplyAnalysis 在单个事务里完成一次分析提交：
//  1. 向幂等账本写入 (userID, submissionID)，命中唯一键说明该提交
//     已经分析过（队列重投递），整个更新跳过，返回 applied=false；
//  2. 对档案行 SELECT ... FOR UPDATE（不存在则惰性创建默认档案），
//     并发处理同一用户的任务在这里串行化，不会互相覆盖增量；
//  3. 在持锁的最新档案上执行 apply 并保存。
//
// apply 必须是纯内存的确定性函数，不做任何外部调用。
func (r *ProfileRepository) ApplyAnalysis(ctx context.Context, userID uint, submissionID string, apply func(p *model.CognitiveProfile)) (*model.CognitiveProfile, bool, error) {
	var profile *model.CognitiveProfile
	applied := false

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.ProcessedSubmission{UserID: userID, SubmissionID: submissionID})
		if ledger.Error != nil {
			return ledger.Error
		}
		if ledger.RowsAffected == 0 {
			// 重投递：掌握度已累计过，什么都不做
			return nil
		}

		var p model.CognitiveProfile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&p).Error
		if err == gorm.ErrRecordNotFound {
			created := model.DefaultProfile(userID)
			if err := tx.Create(created).Error; err != nil {
				return err
			}
			p = *created
		} else if err != nil {
			return err
		}

		if p.ConceptMastery == nil {
			p.ConceptMastery = model.MasteryMap{}
		}

		apply(&p)

		if err := tx.Save(&p).Error; err != nil {
			return err
		}

		profile = &p
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return profile, applied, nil
}
