// Package schema defines record schemas for generator replies.
//
// A Record is a named, ordered set of fields typed by a closed set of type
// descriptors (primitive, rule, list, tuple, union, optional, nested record).
// Every type can describe itself, synthesise an example and validate a value.
// Validation is lazy: it stops at the first failure, in field declaration
// order, and reports a short message plus a longer one meant for the
// generator.
//
// Records also render the prompt text that asks a generator for a value and
// the repair prompt that asks it to fix an invalid one.
package schema
