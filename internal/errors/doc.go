// Package errors provides the classified error type used across sitedeploy.
//
// A ClassifiedError carries a category (config, auth, forge, filesystem, ...), a
// severity, a retry strategy and structured context. Errors are created through a
// fluent builder:
//
//	err := errors.WrapError(cause, errors.CategoryForge, "enable pages failed").
//		WithContext("repository", "owner/repo").
//		Build()
//
// The CLI adapter maps classified errors to process exit codes and log records.
package errors
