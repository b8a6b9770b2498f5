package spreadsheet

import "github.com/rs/zerolog"

// DefaultSheetName is the sheet every new workbook starts with
const DefaultSheetName = "Sheet1"

type config struct {
	logger       zerolog.Logger
	clock        Clock
	random       RandomGenerator
	defaultSheet string
}

// Option configures a Workbook
type Option func(*config)

// WithLogger sets the logger edits and recalculations are reported to.
// the default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock replaces the wall clock read by TODAY and NOW
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithRandom replaces the source read by RAND and RANDBETWEEN
func WithRandom(random RandomGenerator) Option {
	return func(c *config) {
		c.random = random
	}
}

// WithDefaultSheet names the initial sheet, which unqualified cell ids
// refer to
func WithDefaultSheet(name string) Option {
	return func(c *config) {
		c.defaultSheet = name
	}
}

func newConfig(opts []Option) config {
	env := DefaultEnv()
	c := config{
		logger:       zerolog.Nop(),
		clock:        env.Clock,
		random:       env.Random,
		defaultSheet: DefaultSheetName,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
