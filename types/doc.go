// Package types provides core types shared across the reagent module.
// This package has ZERO dependencies on other reagent packages to avoid
// circular imports. All other packages should import types from here.
package types
