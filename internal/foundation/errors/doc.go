// Package errors provides the classified error primitives used across blogbuilder.
//
// A ClassifiedError carries a category, a severity and structured context so
// that the CLI can pick an exit code and the preview server can pick an HTTP
// status without string matching.
//
// Example usage:
//
//	err := errors.ContentError("post index file missing").
//		WithContext("slug", slug).
//		WithContext("path", path).
//		Build()
package errors
