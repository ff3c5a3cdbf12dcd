package model

// Concept 平台级知识点字典，Key 是掌握度映射与内容片段引用的主键
type Concept struct {
	BaseModel
	Key         string `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Name        string `gorm:"size:128;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
}

func (Concept) TableName() string {
	return "concepts"
}

// Lesson 课程单元。TestCode 对客户端隐藏，判题时才拼接执行
type Lesson struct {
	BaseModel
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Content     string          `gorm:"type:text" json:"content"`
	StarterCode string          `gorm:"type:text" json:"starterCode"`
	Language    string          `gorm:"size:32;default:'javascript'" json:"language"`
	TestCode    string          `gorm:"type:text" json:"-"`
	IsPublished bool            `gorm:"default:false" json:"isPublished"`
	Concepts    []LessonConcept `gorm:"foreignKey:LessonID" json:"concepts"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// LessonConcept 课程与知识点的关联，带该课对知识点的权重。
// Position 持久化课程内知识点的编排顺序，桥接题的首尾知识点以它为准
type LessonConcept struct {
	BaseModel
	LessonID      uint   `gorm:"index:idx_lesson_concept,unique;not null" json:"lessonId"`
	ConceptKey    string `gorm:"size:64;index:idx_lesson_concept,unique;not null" json:"conceptKey"`
	MasteryWeight int    `gorm:"not null;default:0" json:"masteryWeight"`
	Position      int    `gorm:"not null;default:0" json:"position"`
}

func (LessonConcept) TableName() string {
	return "lesson_concepts"
}
