/*
Package livestack implements live image stacking.

# Concept

Frames are picked up by a scanner as soon as they appear in the scan
folder and flow through four stages, each running in its own goroutine
and connected with observable queues:

	Pre-processor - prepares raw frames;
	Stacker - folds frames into the running stack;
	Post-processor - prepares stack result for display;
	Persister - writes images to the work folder.

Stages never block each other: a slow persister only grows the save queue.

# Session

Controller owns a session which is stopped, running or paused. Starting
a stopped session resets the stack and prepares the work folder, pausing
only stops the scanner and stopping also discards frames that were not
pre-processed yet:

	c := livestack.New(cfg, scan.NewFolder(cfg.ScanFolderPath()))
	defer c.Shutdown()
	if err := c.StartSession(); err != nil {
		return err
	}

Shared state like stacking mode, queue sizes and the latest results is
exposed with Runtime.
*/
package livestack
