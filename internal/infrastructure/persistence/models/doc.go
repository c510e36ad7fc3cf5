// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns. Mappers convert between the two, and repositories only ever
// read and write models.
//
// All timestamps are stored in UTC.
package models
