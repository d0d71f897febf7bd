// Package items produces the ordered item list a batch run processes.
//
// Item lists arrive as spreadsheets exported to CSV, or as YAML/JSON
// manifests. Every loader returns items in file order with 1-based indexes,
// requires a title-or-blank and a resource path per row, and folds all other
// columns into the item's attribute map. Failures are classified as input
// errors so transports can reject a start request before any run begins.
package items
