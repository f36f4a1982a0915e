package capture

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bbangert/zilch/pkg/envelope"
)

// DefaultLevel is the severity used by CaptureException when none is given,
// matching the original's level=40 ("error") default.
const DefaultLevel = 40

// exemptFromTruncation lists the data keys shipped whole, bypassing Shorten.
var exemptFromTruncation = []string{"traceback", "frames", "versions"}

// Sender hands an encoded-ready envelope to its destination. transport.Dispatcher
// satisfies this interface.
type Sender interface {
	Send(envelope.Envelope) error
}

// Config is the explicit, per-Capture configuration object: no hidden
// globals for endpoint, process-wide tags, or the dispatcher reference.
type Config struct {
	// Dispatcher receives every envelope this Capture produces.
	Dispatcher Sender
	// Tags is the process-wide tag list concatenated onto every envelope,
	// ahead of call-supplied tags.
	Tags [][2]string
	// Hostname overrides os.Hostname() for tests; empty uses the real host.
	Hostname string
}

// Capture is the client-facing entry point: it turns a live failure or a
// user-supplied event into an envelope.Envelope and hands it to its
// Dispatcher.
type Capture struct {
	cfg      Config
	versions versionLookup
}

// New builds a Capture from cfg.
func New(cfg Config) *Capture {
	return &Capture{cfg: cfg}
}

// ExceptionInput is what the caller assembles from a live failure: Go has
// no sys.exc_info() equivalent, so the caller supplies the error and the
// frames captured at the point of failure (typically via runtime.Callers
// inside a deferred recover()).
type ExceptionInput struct {
	ClassName string
	Value     string
	Message   string
	Level     int
	Traceback string
	Frames    []RawFrame
}

// Option customizes a single Capture/CaptureException call.
type Option func(*captureOpts)

type captureOpts struct {
	tags      [][2]string
	extra     map[string]interface{}
	date      time.Time
	timeSpent *int64
	eventID   string
}

// WithTags appends call-specific tags, in addition to the process-wide list.
func WithTags(tags ...[2]string) Option {
	return func(o *captureOpts) { o.tags = append(o.tags, tags...) }
}

// WithExtra attaches free-form metadata to the envelope.
func WithExtra(extra map[string]interface{}) Option {
	return func(o *captureOpts) { o.extra = extra }
}

// WithDate overrides the envelope date; absent, the current UTC time is used.
func WithDate(date time.Time) Option {
	return func(o *captureOpts) { o.date = date }
}

// WithTimeSpent attaches a duration, in milliseconds, to the envelope.
func WithTimeSpent(ms int64) Option {
	return func(o *captureOpts) { o.timeSpent = &ms }
}

// WithEventID overrides the generated event id.
func WithEventID(id string) Option {
	return func(o *captureOpts) { o.eventID = id }
}

// CaptureException builds the Exception/HTTPException payload described in
// the capture contract: canonicalized value, extracted frames, fingerprint
// over (level, class name, traceback-or-message), and resolved
// module-to-version map for every module appearing in frames.
func (c *Capture) CaptureException(in ExceptionInput, opts ...Option) (string, error) {
	if in.Level == 0 {
		in.Level = DefaultLevel
	}

	frames := ExtractFrames(in.Frames)
	modules := make([]string, 0, len(frames))
	for _, f := range frames {
		modules = append(modules, f.Module)
	}

	payload := envelope.ExceptionPayload{
		Type:      in.ClassName,
		Value:     Shorten(Transform(in.Value)).(string),
		Message:   in.Message,
		Level:     in.Level,
		Frames:    frames,
		Traceback: in.Traceback,
		Versions:  c.versions.lookupVersions(modules),
	}

	hash := Fingerprint(in.Level, in.ClassName, in.Traceback, in.Message)

	opts = append([]Option{func(o *captureOpts) { o.tags = append(o.tags, [2]string{"level", "error"}) }}, opts...)
	return c.capture("Exception", payload, hash, opts...)
}

// Capture captures a message/event and hands it to the Dispatcher. data is
// truncated field-by-field (except the exempt keys) before the envelope is
// built.
func (c *Capture) Capture(eventType string, data map[string]interface{}, hash string, opts ...Option) (string, error) {
	return c.capture(eventType, ShortenMap(transformMap(data), exemptFromTruncation...), hash, opts...)
}

func (c *Capture) capture(eventType string, data interface{}, hash string, opts ...Option) (string, error) {
	o := &captureOpts{}
	for _, opt := range opts {
		opt(o)
	}

	eventID := o.eventID
	if eventID == "" {
		eventID = newEventID()
	}
	date := o.date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	tags := make([][2]string, 0, len(c.cfg.Tags)+len(o.tags)+1)
	tags = append(tags, c.cfg.Tags...)
	tags = append(tags, o.tags...)
	tags = append(tags, [2]string{"Hostname", c.hostname()})

	extra := o.extra
	if extra != nil {
		extra = ShortenMap(transformMap(extra))
	}

	e := envelope.Envelope{
		EventType: eventType,
		EventID:   eventID,
		Date:      date,
		TimeSpent: o.timeSpent,
		Hash:      hash,
		Tags:      tags,
		Data:      data,
		Extra:     extra,
	}

	if c.cfg.Dispatcher == nil {
		return eventID, errConfigurationf("no dispatcher configured")
	}
	if err := c.cfg.Dispatcher.Send(e); err != nil {
		return eventID, err
	}
	return eventID, nil
}

func (c *Capture) hostname() string {
	if c.cfg.Hostname != "" {
		return c.cfg.Hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func transformMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	out, ok := Transform(m).(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return out
}

// newEventID mints a 128-bit event id, hex-encoded to the 32-character
// form the wire envelope's event_id field expects (no uuid dashes).
func newEventID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

type configError string

func (e configError) Error() string { return string(e) }

func errConfigurationf(msg string) error { return configError(msg) }
