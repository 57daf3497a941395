// Package catalog holds the immutable mission template model: missions, their
// three risk approaches, narrative phases, compatibility rules and the
// coordinators that can be attached to a deployment.
//
// A Catalog is built once from validated templates and never mutated; lookups
// hand out deep copies so callers cannot alter shared template state.
package catalog
