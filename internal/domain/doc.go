// Package domain provides shared domain types for the deskpilot desktop agent.
// These types are used across all internal packages to ensure consistent data structures.
//
// IMPORTANT: This package only imports the standard library, internal/constants
// and internal/errors.
package domain
