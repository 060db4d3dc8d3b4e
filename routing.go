package livestack

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/dudk/livestack/config"
	"github.com/dudk/livestack/frame"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

var timestampReplacer = strings.NewReplacer(" ", "-", ":", "-", ".", "-")

// saveProcessResult schedules saves of post-processed frame. The primary
// image is always saved, web copy only when web server is active and
// timestamped copy only when every image is kept.
func (c *Controller) saveProcessResult(f *frame.Frame) {
	work := c.settings.WorkFolderPath()
	format := c.settings.ImageSaveFormatExt()

	c.saveImage(f, format, work, config.StackedImageFileNameBase, false)
	if c.rt.WebServerActive() {
		c.saveImage(f, config.ImageSaveJPEG, work, config.WebServedImageFileNameBase, false)
	}
	if c.rt.SaveEveryImage() {
		c.saveImage(f, format, work, config.StackedImageFileNameBase, true)
	}
}

// saveImage pushes a copy of frame with destination set to the save queue.
func (c *Controller) saveImage(f *frame.Frame, ext, dir, base string, addTimestamp bool) {
	name := base
	if addTimestamp {
		name += "-" + timestamp(c.now())
	}
	clone := f.Clone()
	clone.Destination = filepath.Join(dir, name+"."+ext)
	c.rt.SaveQueue.Push(clone)
}

// timestamp formats t with microseconds so it can be used in file names.
func timestamp(t time.Time) string {
	return timestampReplacer.Replace(t.Format(timestampLayout))
}
