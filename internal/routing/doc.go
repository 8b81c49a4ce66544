// Package routing owns candidate ranking and budget selection.
//
// Ownership boundary:
// - query and selection shapes
// - confidence scoring of providers against detected capabilities
// - budget-constrained acceptance (SelectionPolicy)
//
// Routing does not invoke providers and never mutates the registry.
package routing
