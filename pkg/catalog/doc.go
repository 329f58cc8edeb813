// Package catalog holds the declarative part catalog: part templates with
// their connection definitions, and the directed rules stating which
// connections may join. A catalog is produced once at load time by an
// import pipeline (see package dsl) and is never mutated by the runtime.
package catalog
