package livestack

import (
	"io/fs"
	"time"

	"github.com/dudk/livestack/log"
	"github.com/dudk/livestack/process"
	"github.com/dudk/livestack/stack"
)

// Option provides a way to set functional parameters to controller.
type Option func(c *Controller)

// WithLogger sets logger to Controller and all stages. If this option is
// not provided, silent logger is used.
func WithLogger(logger log.Logger) Option {
	return func(c *Controller) {
		c.log = logger
	}
}

// WithResources sets file system the work folder is prepared from. It
// must contain resources.Index and resources.Waiting files.
func WithResources(resources fs.FS) Option {
	return func(c *Controller) {
		c.resources = resources
	}
}

// WithPreProcessors sets the body of pre-processing stage.
func WithPreProcessors(processors ...process.Processor) Option {
	return func(c *Controller) {
		c.preProcessors = processors
	}
}

// WithPostProcessors sets the body of post-processing stage.
func WithPostProcessors(processors ...process.Processor) Option {
	return func(c *Controller) {
		c.postProcessors = processors
	}
}

// WithAligner sets aligner used by the stacker.
func WithAligner(a stack.Aligner) Option {
	return func(c *Controller) {
		c.aligner = a
	}
}

// WithClock sets time source used for timestamped file names.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}
