// Package idgen produces the human-readable identifiers printed on lab
// paperwork: <PREFIX>-<YYYYMMDD>-<NNNN>, where NNNN is a random number in
// 1000..9999.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/medilab/lims/internal/platform/apperr"
)

const (
	PrefixPatient   = "PAT"
	PrefixSample    = "SMP"
	PrefixTestOrder = "TST"
	PrefixInvoice   = "INV"
	PrefixLog       = "LOG"
	PrefixReport    = "RPT"
)

// DefaultAttempts is how many identifiers WithRetry tries before giving up.
const DefaultAttempts = 5

// ErrCollision is returned by repositories when an insert hit the UNIQUE
// constraint on a generated identifier column.
var ErrCollision = errors.New("generated identifier already in use")

var pattern = regexp.MustCompile(`^[A-Z]{3}-\d{8}-\d{4}$`)

// Valid reports whether id has the <PREFIX>-<YYYYMMDD>-<NNNN> shape.
func Valid(id string) bool {
	return pattern.MatchString(id)
}

// Generator builds identifiers from a clock and a random source.
type Generator struct {
	mu  sync.Mutex
	now func() time.Time
	rnd *rand.Rand
}

// New returns a generator backed by the wall clock.
func New() *Generator {
	return &Generator{
		now: time.Now,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewWithClock returns a generator with a fixed clock and seed, for tests.
func NewWithClock(now func() time.Time, seed int64) *Generator {
	return &Generator{now: now, rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns a fresh identifier for prefix.
func (g *Generator) Generate(prefix string) string {
	g.mu.Lock()
	n := 1000 + g.rnd.Intn(9000)
	g.mu.Unlock()
	return fmt.Sprintf("%s-%s-%04d", prefix, g.now().Format("20060102"), n)
}

// WithRetry calls fn with freshly generated identifiers until fn succeeds,
// fails with something other than ErrCollision, or attempts run out.
func WithRetry(ctx context.Context, g *Generator, prefix string, attempts int, fn func(id string) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(g.Generate(prefix))
		if err == nil || !errors.Is(err, ErrCollision) {
			return err
		}
	}
	return apperr.Conflict("could not allocate a unique %s identifier after %d attempts", prefix, attempts)
}
