// Package capability owns query tagging.
//
// Ownership boundary:
// - capability tag vocabulary
// - text -> tag set detection
//
// Tagging is deterministic keyword matching. Routing depends only on the
// Tagger interface so a classifier can replace KeywordTagger later.
package capability
