// Package gorm provides GORM-backed implementations of the signon store
// interfaces for SQL databases.
//
// Usage:
//
//	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	if err := signongorm.AutoMigrate(db); err != nil { ... }
//	users := signongorm.NewUserStore(db)
//	tokens := signongorm.NewTokenStore(db)
package gorm
