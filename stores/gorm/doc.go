// Package gorm provides the GORM-based AccountStore used in production
// deployments. It works with any database GORM supports; codeboard runs it
// against PostgreSQL.
//
// # Database Schema
//
// The package auto-migrates a single table:
//   - accounts: identity records with provider linkage, the current refresh
//     token hash, and the cached stats snapshot
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	gormstore.AutoMigrate(db)
//	accounts := gormstore.NewAccountStore(db)
//
// TranslateError must be on: the store detects the external-ID uniqueness
// race through gorm.ErrDuplicatedKey.
package gorm
