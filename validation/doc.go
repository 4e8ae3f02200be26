// Package validation validates configuration and request structs through
// go-playground/validator struct tags and reports failures as AppErrors.
package validation
