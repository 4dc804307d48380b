/*
Package log provides structured logging for accelschd using zerolog.

A single package-level Logger is initialized once via Init and read from
everywhere else; component-specific child loggers (WithComponent,
WithEntityID, WithModelID, WithTaskID) attach context fields without
threading a logger through every call.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Uint64("entity_id", 3).Msg("dispatched kernel")

	taskLog := log.WithTaskID(42)
	taskLog.Debug().Msg("task finished")

Hot-path failures that the scheduler cannot recover from (a frequency
write the accelerator rejects, a kernel dispatch that returns an error) use
Logger.Fatal(), which logs then exits the process — these are asserted
bugs, not errors callers are expected to handle.
*/
package log
