package model

import "time"

// MasteryMap 知识点掌握度映射，键为 Concept.Key，值始终钳制在 [0,1]
type MasteryMap map[string]float64

// CognitiveProfile 每个用户一条的认知档案，仅由分析引擎通过 upsert 修改。
// 缺失的知识点条目视为掌握度 0；首个分析任务到达时惰性创建，
// 默认挫败感 0.1、空掌握度映射。
type CognitiveProfile struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint       `gorm:"uniqueIndex;not null" json:"userId"`
	ConceptMastery   MasteryMap `gorm:"serializer:json;type:json" json:"conceptMastery"`
	FrustrationLevel float64    `gorm:"type:double;default:0.1" json:"frustrationLevel"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (CognitiveProfile) TableName() string {
	return "cognitive_profiles"
}

// DefaultProfile 惰性创建时的初始档案
func DefaultProfile(userID uint) *CognitiveProfile {
	return &CognitiveProfile{
		UserID:           userID,
		ConceptMastery:   MasteryMap{},
		FrustrationLevel: 0.1,
	}
}

// MasteryOf 读取某知识点掌握度，缺失条目视为 0
func (p *CognitiveProfile) MasteryOf(conceptKey string) float64 {
	if p.ConceptMastery == nil {
		return 0
	}
	return p.ConceptMastery[conceptKey]
}

// ProcessedSubmission 幂等账本：同一 (user, submission) 的分析任务
// 只允许生效一次，队列重投递不会重复累计掌握度
type ProcessedSubmission struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"index:idx_user_submission,unique;not null" json:"userId"`
	SubmissionID string    `gorm:"type:varchar(36);index:idx_user_submission,unique;not null" json:"submissionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (ProcessedSubmission) TableName() string {
	return "processed_submissions"
}
