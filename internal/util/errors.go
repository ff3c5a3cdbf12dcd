package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrLessonNotPublished = errors.New("lesson not published or not accessible")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrActionNotFound     = errors.New("action not found")
	ErrProblemNotFound    = errors.New("generated problem not found")
)
