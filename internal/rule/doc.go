// Package rule provides scalar constraint rules.
//
// A rule is a stateless value built by a parameterised constructor
// (Interval(0, 10), OneOf(...), Regex(...)). Declarations refer to rules by
// name through an explicit Registry.
package rule
