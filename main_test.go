package main

import (
	"io/fs"
	"testing"
)

func TestAppOptions(t *testing.T) {
	t.Parallel()

	app := NewApp()
	opts := appOptions(app)
	if opts.Title != "yessir" || opts.OnStartup == nil || opts.OnShutdown == nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if len(opts.Bind) != 1 || opts.Bind[0] != app {
		t.Fatalf("expected app bound, got %+v", opts.Bind)
	}
	if opts.AssetServer == nil || opts.AssetServer.Assets == nil {
		t.Fatalf("expected embedded assets")
	}
	if _, err := fs.Stat(assets, "frontend/dist/index.html"); err != nil {
		t.Fatalf("expected embedded index.html: %v", err)
	}
}
