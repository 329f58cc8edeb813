// Package part holds part templates built from the catalog, their typed
// connections, and part instances.
//
// Parts live in an arena owned by the world and refer to each other by ID,
// so parent and child links never form pointer cycles.
package part
