// Package reporting implements the Reporter plugin contract (spec §6) and
// the Pool's post-run reporting protocol: console reporters run
// sequentially in declaration order, then file reporters run concurrently.
// Reporters never mutate the Run they're handed.
package reporting

import (
	"context"

	"golang.org/x/sync/errgroup"

	"vela/internal/pool"
)

// Type distinguishes a console reporter (writes to the terminal) from a
// file reporter (writes under OutputDir), per spec §6's contract.
type Type string

const (
	TypeConsole Type = "console"
	TypeFile    Type = "file"
)

// Reporter is the plugin contract external collaborators implement (spec
// §6: "{name, type, report({reports, outputDir, ...}) -> async void}").
type Reporter interface {
	Name() string
	Type() Type
	Report(ctx context.Context, run *pool.Run, outputDir string) error
}

// Dispatch runs reporters per spec §4.5/§6's protocol: all console
// reporters first, in declaration order, then all file reporters
// concurrently. A console reporter error aborts the remaining console
// reporters and skips the file reporters; a file reporter error never
// aborts its siblings (they all run to completion via errgroup) but is
// still surfaced to the caller once every file reporter has finished.
func Dispatch(ctx context.Context, reporters []Reporter, run *pool.Run, outputDir string) error {
	for _, r := range reporters {
		if r.Type() != TypeConsole {
			continue
		}
		if err := r.Report(ctx, run, outputDir); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range reporters {
		if r.Type() != TypeFile {
			continue
		}
		r := r
		g.Go(func() error {
			return r.Report(gctx, run, outputDir)
		})
	}
	return g.Wait()
}
