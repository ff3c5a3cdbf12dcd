package database

import (
	"codepath_backend/internal/config"
	"codepath_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if !migrate {
		return db, nil
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Concept{},
		&model.Lesson{},
		&model.LessonConcept{},
		&model.Submission{},
		&model.CognitiveProfile{},
		&model.ProcessedSubmission{},
		&model.AdaptiveAction{},
		&model.ContentFragment{},
		&model.GeneratedProblem{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认知识点（为空时插入常用知识点）
	var count int64
	db.Model(&model.Concept{}).Count(&count)
	if count == 0 {
		defaultConcepts := []model.Concept{
			{Key: "variables", Name: "变量", Description: "变量声明与赋值"},
			{Key: "loop", Name: "循环", Description: "for/while 循环"},
			{Key: "function", Name: "函数", Description: "函数定义与调用"},
			{Key: "array", Name: "数组", Description: "数组与索引"},
			{Key: "recursion", Name: "递归", Description: "递归与分治"},
			{Key: "closure", Name: "闭包", Description: "闭包与作用域"},
			{Key: "async", Name: "异步", Description: "回调、Promise 与 async/await"},
		}
		for _, c := range defaultConcepts {
			db.Create(&c)
		}
	}

	return db, nil
}
