//go:build tools

// Package tools tracks development tool dependencies in go.mod.
// Install them with: go install -tags tools ./...
package tools

//go:generate go run github.com/golang/mock/mockgen -destination=pkg/mocks/mock_runner.go -package=mocks github.com/sqlite-burrito/burrito/pkg/process Runner

import (
	// Linting and formatting
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "golang.org/x/tools/cmd/goimports"

	// Code generation
	_ "github.com/golang/mock/mockgen"

	// Testing tools
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "gotest.tools/gotestsum"

	// Security scanning
	_ "github.com/securego/gosec/v2/cmd/gosec"
)
