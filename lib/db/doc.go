// Package db provides the hierarchical tree engine that backs every nora store.
// A database is a single JSON-like tree: inner nodes are objects keyed by child name,
// leaves are strings, numbers or booleans. Nodes are addressed by slash separated paths.
//
// The package focuses on:
//   - Path parsing and validation (Path, ParsePath)
//   - Value normalization into the canonical tree form (Normalize)
//   - Canonical encoding and value hashing (Encode, Decode, Hash)
//   - Mutations on the tree with realtime database semantics (Tree)
//   - Child level diffing used to derive child events (DiffChildren)
//
// Tree Semantics:
//
//   - Writing null (nil) to a path removes the node at that path.
//   - Objects that become empty are pruned, an empty object is never stored.
//   - Arrays are stored as objects keyed by their index ("0", "1", ...).
//   - Writing below a leaf replaces the leaf with an object.
//   - Reading a path that does not exist yields nil.
//
// Canonical Encoding:
//
//	Encode produces JSON with sorted object keys. Two equal trees therefore always
//	encode to the same bytes and produce the same Hash, which is what the stores use
//	for compare-and-set and for change detection.
//
// Thread Safety:
//
//	Tree is NOT safe for concurrent use. Stores wrap it with their own locking so that
//	read-compare-write sequences stay atomic.
package db
