// Package lib provides a Go SDK for managing appdraft projects programmatically.
//
// This package allows applications to generate, inspect, and manage projects
// without shelling out to the appdraft CLI binary. It is useful for scripting,
// automation, and building tools on top of appdraft.
//
// # Quick Start
//
// Create a client, generate a project, and inspect it:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	p, err := client.Generate(ctx, lib.GenerateOpts{
//	    Prompt: "Build a pomodoro timer with a big start button",
//	    APIKey: os.Getenv("APPDRAFT_AI_API_KEY"),
//	})
//	fmt.Println(p.PreviewURL)
//
//	// Inspect, stop, archive.
//	client.GetProject(ctx, p.ID)
//	client.ListFiles(ctx, p.ID)
//	client.StopProject(ctx, p.ID)
//	client.ArchiveProject(ctx, p.ID)
//
// # Progress
//
// Generation publishes progress events as the pipeline advances. Set
// [GenerateOpts].OnProgress to observe them:
//
//	client.Generate(ctx, lib.GenerateOpts{
//	    Prompt: "...",
//	    APIKey: key,
//	    OnProgress: func(ev lib.ProgressEvent) {
//	        fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Message)
//	    },
//	})
//
// # Health Checks
//
// Run preflight checks to verify the host environment:
//
//	results, _ := client.Doctor(ctx)
//	for _, r := range results {
//	    fmt.Printf("%s: %s (%s)\n", r.ID, r.Message, r.Status)
//	}
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrNotValid]: Invalid input or operation (e.g. archiving a project that is not ready).
//   - [ErrCapacity]: The host refused admission (project cap or resource pressure).
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The underlying
// storage uses SQLite with WAL mode.
package lib
