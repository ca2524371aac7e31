package database

import (
	"time"

	"pizzabot-go/internal/model"
	"pizzabot-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并迁移订单归档表。
// dsn 为空时跳过，订单归档功能不可用。
func InitMySQL(dsn string) {
	if dsn == "" {
		log.Warnf("MySQL DSN 为空，跳过订单归档表初始化")
		return
	}

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := DB.AutoMigrate(&model.OrderRecord{}); err != nil {
		log.Fatal("failed to migrate placed_orders", err)
	}

	log.Info("MySQL database connected successfully")
}
