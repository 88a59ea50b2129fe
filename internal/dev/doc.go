// Package dev provides the development server and live reload.
//
// This package implements:
//   - Polling file watcher over the source directory and runtime scripts
//   - Rebuilds through the build package, one at a time
//   - A static file server for the output directory with caching disabled
//   - WebSocket-based browser refresh with an error overlay
//
// # Rebuilds
//
// The watcher reports settled batches of changed paths, and changes that
// arrive while a rebuild runs are queued for the next one. A batch that
// only touches the static assets directory copies the assets again; any
// compiler input runs a full build; files that are neither are ignored.
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{Config: cfg})
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Live Reload Protocol
//
// The browser connects to /_tsbuild/reload via WebSocket.
// Messages are JSON-encoded and carry the id of the rebuild:
//
//	{"type": "reload", "build": "...", "files": ["src/app.ts"]} // Full page reload
//	{"type": "css", "build": "...", "files": ["css/app.css"]}   // Swaps the named stylesheets
//	{"type": "error", "build": "...", "error": "..."}           // Shows the failure overlay
//	{"type": "clear"}                                           // Clears the overlay
//
// A browser that connects while the build is broken receives the error
// message immediately.
package dev
