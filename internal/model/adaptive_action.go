package model

type ActionType string

const (
	ActionInjectFragment  ActionType = "INJECT_FRAGMENT"
	ActionGenerateProblem ActionType = "GENERATE_PROBLEM"
)

// AdaptiveAction 一条干预决策记录，由决策策略创建（每个分析任务 0 或 1 条），
// 只属于目标用户；pending → completed 的转换只能由属主显式触发
type AdaptiveAction struct {
	BaseModel
	UserID      uint       `gorm:"index:idx_user_pending;not null" json:"userId"`
	ActionType  ActionType `gorm:"type:enum('INJECT_FRAGMENT','GENERATE_PROBLEM');not null" json:"actionType"`
	RelatedID   uint       `gorm:"not null" json:"relatedId"`
	IsCompleted bool       `gorm:"index:idx_user_pending;default:false" json:"isCompleted"`
}

func (AdaptiveAction) TableName() string {
	return "adaptive_actions"
}
