package model

// Submission 一次判题结果的不可变记录。TimeToSolveSeconds 和 CodeChurn
// 由前端上报，是分析引擎计算掌握度增益的输入
type Submission struct {
	UUIDBase
	UserID             uint   `gorm:"index;not null" json:"userId"`
	LessonID           uint   `gorm:"index;not null" json:"lessonId"`
	Code               string `gorm:"type:text" json:"code"`
	Language           string `gorm:"size:32" json:"language"`
	Passed             bool   `gorm:"default:false" json:"passed"`
	Output             string `gorm:"type:text" json:"output"`
	TimeToSolveSeconds int    `gorm:"default:0" json:"timeToSolveSeconds"`
	CodeChurn          int    `gorm:"default:0" json:"codeChurn"`
}

func (Submission) TableName() string {
	return "submissions"
}
