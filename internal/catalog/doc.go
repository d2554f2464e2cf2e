// Package catalog records converted packages in a SQLite database.
//
// One row per package directory; converting the same archive into the same
// directory again replaces the row. Schema changes ship as embedded SQL
// migrations applied on Open.
package catalog
