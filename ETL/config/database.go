package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// DSN возвращает строку подключения для выбранного драйвера
func (c DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// ConnectDatabase устанавливает подключение к хранилищу продаж
func ConnectDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Настройка параметров подключения
	if cfg.Driver == "sqlite" {
		// sqlite не допускает параллельных писателей
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Проверка подключения
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с базой данных: %w", err)
	}

	log.Printf("Успешное подключение к базе данных (%s)", cfg.Driver)
	return db, nil
}

// CloseDatabase закрывает подключение к базе данных
func CloseDatabase(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Printf("Ошибка при закрытии соединения с базой данных: %v", err)
		return
	}
	log.Println("Соединение с базой данных закрыто")
}
