// Package extract turns the raw rows of a rendered result table into
// labeled counts and a reported total.
//
// Rows are interpreted by position, not by label: the first cell is the
// label and a configured cell holds the count. A row whose label reads like
// "Total" supplies the reported total; without one the cells are summed.
// Header rows before the data and footer rows after the total are ignored.
package extract
