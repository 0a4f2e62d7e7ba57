package job

// Spec is a job's compile-time configuration: its short name, the job it runs, whether its output
// should be retained in a running execution's saved_results, and the static
// properties block exposed to the job via Context.Params.
//
// A *Spec is the unit of identity the DSL composer and graph compiler key
// on. Reusing the same *Spec pointer in more than one position of a DSL tree
// means "this is the same node"; 
// building two Specs with identical Short/Job is, by contrast, two distinct
// nodes that happen to collide on short name (and are rejected as such).
type Spec struct {
	Short      string
	Job        Job
	SaveResult bool
	Properties map[string]any
}

// Option configures a Spec at construction time.
type Option func(*Spec)

// WithSaveResult marks the job's output for retention in saved_results.
func WithSaveResult() Option {
	return func(s *Spec) { s.SaveResult = true }
}

// WithProperties attaches a static properties block, returned verbatim by
// Context.Params at run time.
func WithProperties(props map[string]any) Option {
	return func(s *Spec) { s.Properties = props }
}

// NewSpec wraps v (a Job, a Callable, or a plain constant value) under the
// given short name, applying the wrapping rule (see Wrap).
func NewSpec(short string, v any, opts ...Option) *Spec {
	s := &Spec{
		Short:      short,
		Job:        Wrap(short, v),
		Properties: map[string]any{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
