package db

import (
	"database/sql"
	"fmt"
	"log"

	"musichelper/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
// The users table is managed by GORM (see AutoMigrateModels); uploads stays on
// raw SQL because the pipeline needs conditional single-statement updates.
func InitDB() error {
	if err := createUploadsTable(); err != nil {
		return err
	}
	log.Println("Database initialization completed.")
	return nil
}

func createUploadsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS uploads (
		id INT AUTO_INCREMENT PRIMARY KEY,
		original_filename VARCHAR(255) NOT NULL,
		saved_filename VARCHAR(255) NOT NULL,
		file_path VARCHAR(767) NOT NULL,
		file_size BIGINT NOT NULL,
		artist VARCHAR(255),
		song_name VARCHAR(255),
		processing_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		processed_path VARCHAR(767),
		user_id INT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_user_uploads FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create uploads table: %w", err)
	}
	log.Println("Uploads table initialized successfully (or already exists).")
	return nil
}
