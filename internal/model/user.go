package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// User 平台用户，认知档案与自适应动作都挂在用户之下
type User struct {
	BaseModel
	Email    string   `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password string   `gorm:"size:255;not null" json:"-"`
	Name     string   `gorm:"size:100" json:"name"`
	Role     UserRole `gorm:"type:enum('student','teacher','admin');default:'student'" json:"role"`
}

func (User) TableName() string {
	return "users"
}
