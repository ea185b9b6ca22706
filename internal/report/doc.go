// Package report writes collation results.
//
// Every writer renders the cleaned dataset produced by NewGrid: each pair of
// observed index labels becomes a row, rows and columns are sorted, a cell
// proved empty by an accepted visit is 0, and a cell no visit covered is
// left blank. Writers available:
//   - TextWriter: Human-readable tables for terminal display
//   - JSONWriter: Structured JSON for tool integration, raw dataset included
//   - MarkdownWriter: Markdown with a mermaid chart of the column totals
//   - CSVWriter: One line per cell
//   - XLSXWriter: An Excel workbook, one sheet per run
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
