/*
Package turnstile is an extensible middleware engine for serving conversational turns from many
independently developed platforms (voice assistants, chat surfaces) behind one long-lived application.

Cross-cutting concerns such as analytics, storage, NLU and logging hook into named stages of a turn's
lifecycle without the application knowing platform internals in advance.

# Concept

The engine is a tree of Extensible Nodes. Every node owns a Stage Registry: a fixed set of named stages,
each with an ordered list of handlers dispatched sequentially. The App is the root node; platforms are
nodes installed into it, and platform-local plugins are nodes installed into platforms.

When a platform is installed, it registers propagation shims on the root's stages. For each request the
root fires its global sequence:

	setup (once) → platform.claim → platform.init → request → session → user → type →
	interpretation.asr → interpretation.nlu → interpretation.inputs → dialogue.router →
	dialogue.logic → response.output → response → response.flush

The first platform whose claim predicate accepts the raw payload stamps its identity on the Turn, and from
then on only that platform's shims delegate into its local stages ($init, $request, ... $response). If any
stage fails, the sequence stops and the fail stage runs once with the captured error.

# Key Features

  - Single registration mechanism: every hook is a handler on a Stage Registry.
  - Fail-fast configuration: unknown stages and duplicate plugin names are rejected at setup time.
  - Explicit platform identity: zero or several claims for one request are reported, never guessed.
  - Shared, stateless plugins: per-request state lives on the Turn, so concurrent requests never collide.

# Usage

	app := turnstile.New(turnstile.WithLogger(logger))
	if err := app.Use(ctx, core.New(core.Config{})); err != nil {
		log.Fatal(err)
	}
	app.Intent("HelloIntent", func(ctx context.Context, turn *domain.Turn) error {
		turn.Tell("Hello World!")
		return nil
	})

	// Any transport adapter (HTTP, MCP, CLI) drives one turn per request
	http.ListenAndServe(":8080", httpadapter.NewHandler(app))
*/
package turnstile
