// Package rewrite prepares the static site for a production host.
//
// A RuleSet applies an ordered list of text substitutions to a single file:
// localhost URL prefixes are removed, the configured development host:port
// literals are replaced by the production host, and markup files get their
// href/src values converted to bare relative references. A Processor runs the
// rule set over a directory tree, either in place or into a mirrored output
// directory, and finishes by writing the Apache configuration from HTAccess.
//
// Per-file failures never abort a run; they are collected in Report.Failed.
package rewrite
