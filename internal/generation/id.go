package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a time-based id with a random suffix, e.g.
// gen_1700000000000_1f2e3d4c. Unique for the process lifetime in practice;
// not a cryptographic guarantee.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("gen_%d_%s", now.UnixMilli(), suffix)
}
