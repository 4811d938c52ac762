package generator

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary describes a completed run.
type Summary struct {
	Path     string
	Channels int // channels in the catalog
	Rendered int
	Skipped  int
	Replaced bool // an older playlist existed at Path
	Bytes    int64
	Elapsed  time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("playlist generated and saved to %s: %d of %d channels, %d skipped, %s in %s",
		s.Path, s.Rendered, s.Channels, s.Skipped, humanize.Bytes(uint64(s.Bytes)), s.Elapsed.Round(time.Millisecond))
}
