// Package tree provides the in-memory entity tree produced by decoding Clausewitz
// game-data files, both text and binary.
//
// # Core Types
//
// The tree is a closed set of three entity kinds:
//
//   - Node: a named or anonymous brace-delimited container holding ordered children
//   - Entry: a bare value inside a container (no name)
//   - Attribute: a name=value pair inside a container
//
// Every entity exposes Name and Value. A Node has no value, an Entry has no name.
//
// # Queries
//
// Name lookups are case-insensitive and first-match-wins by insertion order. Duplicate
// names beyond the first are invisible to name lookup but are still visited by Walk,
// Children and the exporter. Containers with more than IndexThreshold children carry a
// lowercase name index, built once by Seal, which only accelerates exact lookups.
//
// # Export
//
// Export writes the canonical text form:
//
//	name={
//		key=value
//		key="quoted value"
//		entry entry
//	}
//
// Parsing the exported text yields an isomorphic tree.
package tree
