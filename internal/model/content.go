package model

// ContentFragment 补救性讲解片段，INJECT_FRAGMENT 动作的投递内容
type ContentFragment struct {
	BaseModel
	LessonID   uint   `gorm:"index" json:"lessonId"`
	ConceptKey string `gorm:"size:64;index;not null" json:"conceptKey"`
	Title      string `gorm:"size:255;not null" json:"title"`
	Body       string `gorm:"type:text" json:"body"`
	Source     string `gorm:"size:32;default:'generated'" json:"source"`
}

func (ContentFragment) TableName() string {
	return "content_fragments"
}

// GeneratedProblem 桥接题，GENERATE_PROBLEM 动作的投递内容。
// TestCode 对客户端隐藏，仅在验证提交时拼接执行
type GeneratedProblem struct {
	BaseModel
	Title         string `gorm:"size:255;not null" json:"title"`
	Description   string `gorm:"type:text" json:"description"`
	StarterCode   string `gorm:"type:text" json:"starterCode"`
	TestCode      string `gorm:"type:text" json:"-"`
	SourceConcept string `gorm:"size:64" json:"sourceConcept"`
	TargetConcept string `gorm:"size:64" json:"targetConcept"`
}

func (GeneratedProblem) TableName() string {
	return "generated_problems"
}
