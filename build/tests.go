package build

import (
	"context"

	"github.com/outofforest/build"
	"github.com/outofforest/buildgo"
)

// goTests runs tests with the `test` build tag, selecting cache parameters from cache/params_testing.go.
func goTests(ctx context.Context, deps build.DepsFunc) error {
	return buildgo.GoTest(ctx, deps, "test")
}
