package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/noteservice"
)

// ErrCheckFailed is returned by Check when the vault has problems.
var ErrCheckFailed = errors.New("check found problems")

// commandVault sets up logging on stderr (stdout carries the command's
// result) and opens the vault.
func commandVault(opts []Option) (*application, *vault, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, nil, err
	}
	logOut := app.logOut
	if logOut == nil {
		logOut = os.Stderr
	}
	v, err := openVault(app.config, newLogger(app.config, logOut))
	if err != nil {
		return nil, nil, err
	}
	return app, v, nil
}

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, v, err := commandVault(opts)
	if err != nil {
		return err
	}
	defer v.Close()

	srv := mcpserver.New(v.notes, attachments.New(v.store), app.config.App.Version)
	return srv.ServeStdio()
}

// Render writes the rendered HTML of a single note.
func Render(ctx context.Context, note string, opts ...Option) error {
	app, v, err := commandVault(opts)
	if err != nil {
		return err
	}
	defer v.Close()

	p, err := noteservice.NotePath(note)
	if err != nil {
		return err
	}
	html, err := v.notes.RenderNote(ctx, p)
	if err != nil {
		return fmt.Errorf("render %s: %w", p, err)
	}
	_, err = fmt.Fprintln(app.out, html)
	return err
}

// Check prints broken wikilinks and invalid names. It returns
// ErrCheckFailed when anything was reported.
func Check(ctx context.Context, opts ...Option) error {
	app, v, err := commandVault(opts)
	if err != nil {
		return err
	}
	defer v.Close()

	rep, err := v.notes.CheckVault(ctx)
	if err != nil {
		return fmt.Errorf("check vault: %w", err)
	}

	for _, p := range rep.BrokenLinks {
		fmt.Fprintf(app.out, "broken link: %s -> [[%s]]\n", p.Path, p.Target)
	}
	for _, p := range rep.InvalidNames {
		fmt.Fprintf(app.out, "invalid name: %s (%s)\n", p.Path, p.Reason)
	}
	if n := rep.Count(); n > 0 {
		fmt.Fprintf(app.out, "%d problem(s)\n", n)
		return ErrCheckFailed
	}
	fmt.Fprintln(app.out, "ok")
	return nil
}
