// Package ir provides the value model for generator replies.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - IRValue is sealed: null, string, integer, float, boolean, list, object
//   - Integers and floats are distinct kinds; booleans are never numbers
//   - Objects remember insertion order, which drives prompt and example rendering
//   - Canonical JSON (sorted keys, NFC) is used only for hashing and storage
package ir
