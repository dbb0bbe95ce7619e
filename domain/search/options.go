package search

// Limits and defaults for ranked queries.
const (
	DefaultLimit         = 20
	MaxLimit             = 100
	DefaultSimilarLimit  = 6
	DefaultMinSimilarity = 0.5
)

// Option configures a ranked query.
type Option func(*Options)

// Options holds the resolved parameters of a ranked query.
type Options struct {
	limit          int
	minSimilarity  float64
	includePrivate bool
	viewerID       string
}

// WithLimit sets the maximum number of results. Values outside [1, MaxLimit]
// are clamped when the options are resolved.
func WithLimit(n int) Option {
	return func(o *Options) { o.limit = n }
}

// WithMinSimilarity sets the similarity floor.
func WithMinSimilarity(f float64) Option {
	return func(o *Options) { o.minSimilarity = f }
}

// WithIncludePrivate includes the viewer's own private recipes.
func WithIncludePrivate(include bool) Option {
	return func(o *Options) { o.includePrivate = include }
}

// WithViewer sets the calling user's ID.
func WithViewer(userID string) Option {
	return func(o *Options) { o.viewerID = userID }
}

// NewOptions resolves options on top of the package defaults.
func NewOptions(opts ...Option) Options {
	o := Options{limit: DefaultLimit, minSimilarity: DefaultMinSimilarity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit <= 0 {
		o.limit = DefaultLimit
	}
	if o.limit > MaxLimit {
		o.limit = MaxLimit
	}
	o.minSimilarity = max(-1, min(1, o.minSimilarity))
	return o
}

// Limit returns the result limit.
func (o Options) Limit() int { return o.limit }

// MinSimilarity returns the similarity floor.
func (o Options) MinSimilarity() float64 { return o.minSimilarity }

// IncludePrivate reports whether private recipes of the viewer are included.
func (o Options) IncludePrivate() bool { return o.includePrivate }

// ViewerID returns the calling user's ID.
func (o Options) ViewerID() string { return o.viewerID }

// Scope returns the visibility scope these options describe.
func (o Options) Scope() Scope { return NewScope(o.viewerID, o.includePrivate) }
