package config

import (
	"fmt"
	"log"
	"time"

	"campustrade_go/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DatabaseConfig 数据库配置结构
type DatabaseConfig struct {
	Driver   string // mysql | sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Charset  string
	DSN      string // sqlite 文件路径或完整DSN
	LogLevel logger.LogLevel

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// GetDatabaseConfig 从环境变量获取数据库配置
func GetDatabaseConfig() *DatabaseConfig {
	cfg := &DatabaseConfig{
		Driver:          GetEnv("DB_DRIVER", "mysql"),
		Host:            GetEnv("DB_HOST", "localhost"),
		Port:            GetEnv("DB_PORT", "3306"),
		User:            GetEnv("DB_USER", "root"),
		Password:        GetEnv("DB_PASSWORD", ""),
		DBName:          GetEnv("DB_NAME", "campustrade"),
		Charset:         GetEnv("DB_CHARSET", "utf8mb4"),
		DSN:             GetEnv("DB_DSN", "campustrade.db"),
		LogLevel:        logger.Silent,
		MaxIdleConns:    GetEnvInt("DB_MAX_IDLE_CONNS", 10),
		MaxOpenConns:    GetEnvInt("DB_MAX_OPEN_CONNS", 100),
		ConnMaxLifetime: GetEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
	}

	if GetEnv("GIN_MODE", "release") == "debug" {
		cfg.LogLevel = logger.Info
	}

	log.Printf("📋 Database Config Loaded: driver=%s host=%s port=%s user=%s db=%s password=%s",
		cfg.Driver, cfg.Host, cfg.Port, cfg.User, cfg.DBName, maskPassword(cfg.Password))

	return cfg
}

// maskPassword 掩盖密码（只显示前2个字符）
func maskPassword(pwd string) string {
	if len(pwd) == 0 {
		return "(empty)"
	}
	if len(pwd) <= 2 {
		return "***"
	}
	return pwd[:2] + "***"
}

// dialector 根据驱动构建连接
func (c *DatabaseConfig) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName, c.Charset)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// OpenDatabase 打开数据库连接并执行迁移
func OpenDatabase(cfg *DatabaseConfig) (*gorm.DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层的sql.DB实例
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate 自动迁移所有模型
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Favorite{},
		&models.Order{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitDatabase 初始化全局数据库连接
func InitDatabase() error {
	db, err := OpenDatabase(GetDatabaseConfig())
	if err != nil {
		return err
	}
	DB = db

	log.Println("✅ Database connected successfully")
	return nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
