package db

import "gorm.io/gorm"

const dialectPostgres = "postgres"

// IsPostgres reports whether conn talks to Postgres.
func IsPostgres(conn *gorm.DB) bool {
	return conn != nil && conn.Dialector != nil && conn.Dialector.Name() == dialectPostgres
}

// NumericParam renders a bind placeholder as a NUMERIC value. Postgres needs
// the cast when the parameter arrives as text inside a VALUES list; SQLite
// keeps the text form so fractional digits survive untouched.
func NumericParam(conn *gorm.DB) string {
	if IsPostgres(conn) {
		return "CAST(? AS NUMERIC)"
	}
	return "?"
}

// TextParam renders a bind placeholder as TEXT.
func TextParam(conn *gorm.DB) string {
	if IsPostgres(conn) {
		return "CAST(? AS TEXT)"
	}
	return "?"
}

// UUIDParam renders a bind placeholder compared against a UUID column.
func UUIDParam(conn *gorm.DB) string {
	if IsPostgres(conn) {
		return "CAST(? AS UUID)"
	}
	return "?"
}
