package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options 数据库连接参数
type Options struct {
	Driver   string // mysql / sqlite
	Host     string
	Port     int
	User     string
	Password string
	Name     string // sqlite 时为文件路径
	Charset  string
	MaxOpen  int
	MaxIdle  int
}

// Open 按驱动打开数据库，开启 TranslateError 以便识别唯一约束冲突
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "", "mysql":
		charset := opts.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
			opts.User, opts.Password, opts.Host, opts.Port, opts.Name, charset)
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(opts.Name)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", opts.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("获取连接池失败: %w", err)
	}
	if opts.Driver == "sqlite" {
		// sqlite 只允许一个写连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpen)
		}
		if opts.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdle)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return conn, nil
}
