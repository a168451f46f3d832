// Package stores persists workbooks and their evaluation history in SQLite.
// The schema is applied from embedded migrations; a workbook is stored as
// an ordered list of group statements and can be replayed into an
// equation.Manager after loading.
package stores
