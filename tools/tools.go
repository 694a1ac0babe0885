//go:build tools

package tools

// Pins the code generator and migration CLI versions in go.mod.

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
	_ "github.com/pressly/goose/v3/cmd/goose"
)
