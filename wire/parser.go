package wire

import (
	"context"
	"errors"
	"fmt"

	"github.com/anirudhraja/protostream/arena"
	"github.com/anirudhraja/protostream/schema"
)

// DefaultMaxDepth is the default message nesting limit. Deeper input fails
// with ErrRecursionLimit instead of growing state without bound.
const DefaultMaxDepth = 100

// defaultArenaCapacity sizes the arena a parser creates when the caller does
// not supply one.
const defaultArenaCapacity = 64 << 10

// State is the externally visible condition of a parse operation.
type State int

const (
	// StateSuspended means the parser needs more input bytes; feed another
	// chunk or call Finish.
	StateSuspended State = iota
	// StateDone means the message decoded completely; Result holds it.
	StateDone
	// StateFailed is terminal: the decode is abandoned, no further bytes
	// are consumed and no partial result is returned.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status reports the parse condition after a Feed or Finish call. NeedBytes
// is the minimum byte count that would let a suspended parse progress.
type Status struct {
	State     State
	NeedBytes int
}

// Internal micro-states of the decode state machine. Each one marks a point
// the machine can suspend at and resume from without re-reading committed
// bytes.
type microstate int

const (
	stateTag      microstate = iota // next: read a field tag
	stateDispatch                   // tag read; route the field's first read
	stateBytes                      // length known; fill the arena payload view
	stateSkip                       // discarding skipLeft bytes of an unknown field
	statePacked                     // reading packed elements up to the pushed limit
)

// frame is one in-flight message on the nesting stack.
type frame struct {
	desc      *schema.Descriptor
	sink      schema.MessageSink
	field     *schema.Field // field in the parent this message completes into
	prevLimit int
}

// Option configures a Parser.
type Option func(*Parser)

// WithArena makes the parser allocate decoded payloads from a, which the
// caller owns (and clears) across parses.
func WithArena(a *arena.Arena) Option {
	return func(p *Parser) { p.arena = a }
}

// WithArenaCapacity sizes the parser-owned arena; ignored with WithArena.
func WithArenaCapacity(n int) Option {
	return func(p *Parser) { p.arenaCap = n }
}

// WithMaxDepth overrides the message nesting limit.
func WithMaxDepth(d int) Option {
	return func(p *Parser) { p.maxDepth = d }
}

// Parser is a resumable decoder for one message. It drives a cursor, the
// descriptor dispatch and the arena; when the cursor cannot satisfy a read
// it suspends, yielding control to the caller instead of blocking, and
// resumes exactly where decoding left off once more bytes are fed. A Parser
// decodes a single message and is owned by one goroutine.
type Parser struct {
	cur   Cursor
	chunk *ChunkCursor // non-nil for the streaming variant

	arena    *arena.Arena
	arenaCap int
	maxDepth int

	frames []frame
	state  microstate

	tag        Tag
	field      *schema.Field // field being dispatched; nil for unknown
	scratch    []byte        // arena view being filled in stateBytes
	packedPrev int           // limit to restore when statePacked drains
	skipLeft   int

	result any
	done   bool
	err    error
}

// NewParser creates an incremental parser for the message type described by
// desc, reading from chunks delivered via Feed.
func NewParser(desc *schema.Descriptor, opts ...Option) *Parser {
	chunk := NewChunkCursor()
	p := newMachine(chunk, desc, nil, DefaultMaxDepth)
	p.chunk = chunk
	for _, opt := range opts {
		opt(p)
	}
	if p.arena == nil {
		if p.arenaCap == 0 {
			p.arenaCap = defaultArenaCapacity
		}
		p.arena = arena.New(p.arenaCap)
	}
	return p
}

// newMachine wires a state machine over an existing cursor. Used by
// NewParser, by whole-buffer Parse and by nested-message reads on the codec
// path.
func newMachine(cur Cursor, desc *schema.Descriptor, a *arena.Arena, maxDepth int) *Parser {
	return &Parser{
		cur:      cur,
		arena:    a,
		maxDepth: maxDepth,
		frames:   []frame{{desc: desc, sink: desc.NewMessage(), prevLimit: -1}},
	}
}

// Feed delivers the next chunk and consumes as much of the buffered input
// as possible. The chunk is borrowed until consumed; the caller must not
// mutate it while the parse is in flight.
func (p *Parser) Feed(ctx context.Context, chunk []byte) (Status, error) {
	if p.chunk == nil {
		return Status{State: StateFailed}, errors.New("wire: Feed on a whole-buffer parser")
	}
	if !p.done && p.err == nil {
		p.chunk.Push(chunk)
	}
	return p.run(ctx)
}

// Finish declares the input complete and drives decoding to its end. After
// Finish, any remaining shortfall is a permanent truncation.
func (p *Parser) Finish(ctx context.Context) (Status, error) {
	if p.chunk == nil {
		return Status{State: StateFailed}, errors.New("wire: Finish on a whole-buffer parser")
	}
	p.chunk.Finish()
	return p.run(ctx)
}

// Result returns the decoded message once the parse is done.
func (p *Parser) Result() (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	if !p.done {
		return nil, errors.New("wire: parse is not complete")
	}
	return p.result, nil
}

// Arena exposes the arena backing decoded values, so the caller can control
// their lifetime (values die at Arena.Clear).
func (p *Parser) Arena() *arena.Arena {
	return p.arena
}

// fail records a terminal error, annotated with the current field name when
// one is being dispatched.
func (p *Parser) fail(err error) (Status, error) {
	if p.field != nil {
		err = wrapWithField(err, p.field.Name)
	}
	p.err = err
	return Status{State: StateFailed}, err
}

// run advances the state machine until it finishes, fails, or suspends for
// more input. Cancellation is checked at every iteration, which covers every
// suspension point.
func (p *Parser) run(ctx context.Context) (Status, error) {
	if p.err != nil {
		return Status{State: StateFailed}, p.err
	}
	if p.done {
		return Status{State: StateDone}, nil
	}
	for {
		if ctx != nil {
			if cause := ctx.Err(); cause != nil {
				return p.fail(fmt.Errorf("%w: %v", ErrCancelled, cause))
			}
		}

		var err error
		switch p.state {
		case stateTag:
			err = p.stepTag()
		case stateDispatch:
			err = p.stepDispatch()
		case stateBytes:
			err = p.stepBytes()
		case stateSkip:
			err = p.stepSkip()
		case statePacked:
			err = p.stepPacked()
		}

		switch {
		case err == nil:
			if p.done {
				return Status{State: StateDone}, nil
			}
		case errors.Is(err, ErrNeedMoreData):
			need := 1
			if p.chunk != nil {
				need = p.chunk.Missing()
			}
			return Status{State: StateSuspended, NeedBytes: need}, nil
		default:
			return p.fail(err)
		}
	}
}

// stepTag reads the next tag, completing frames at their limits.
func (p *Parser) stepTag() error {
	tag, err := p.cur.ReadTag()
	if err != nil {
		return err
	}
	if tag == 0 {
		return p.completeFrame()
	}
	p.tag = tag
	p.state = stateDispatch
	return nil
}

// completeFrame finalizes the innermost message. The bottom frame finishes
// the whole parse; nested frames hand their value to the parent sink.
func (p *Parser) completeFrame() error {
	top := &p.frames[len(p.frames)-1]
	value := top.sink.Complete()
	if len(p.frames) == 1 {
		p.result = value
		p.done = true
		return nil
	}
	p.cur.PopLimit(top.prevLimit)
	field := top.field
	p.frames = p.frames[:len(p.frames)-1]
	parent := &p.frames[len(p.frames)-1]
	if err := parent.sink.ConsumeField(field, value); err != nil {
		return err
	}
	p.state = stateTag
	return nil
}

// stepDispatch routes the field the saved tag announces. Unknown fields and
// wire-type mismatches are classified by the advertised wire type and
// skipped; everything else performs its first (and for scalars, only)
// suspendable read.
func (p *Parser) stepDispatch() error {
	num, wt := p.tag.Split()
	if wt == WireStartGroup || wt == WireEndGroup {
		return ErrUnsupportedGroup
	}

	top := &p.frames[len(p.frames)-1]
	f := top.desc.FieldByNumber(int32(num))
	p.field = f

	if f != nil && f.Kind == schema.KindMessage && wt == WireBytes {
		length, err := p.cur.ReadVarint()
		if err != nil {
			return err
		}
		return p.pushFrame(f, int(length))
	}

	if f != nil && wt == WireBytes && (f.Kind == schema.KindString || f.Kind == schema.KindBytes) {
		length, err := p.cur.ReadVarint()
		if err != nil {
			return err
		}
		view, err := allocScratch(p.arena, int(length))
		if err != nil {
			return err
		}
		p.scratch = view
		p.state = stateBytes
		return nil
	}

	if f != nil && f.Repeated && wt == WireBytes && f.Kind.Packable() {
		length, err := p.cur.ReadVarint()
		if err != nil {
			return err
		}
		prev, err := p.cur.PushLimit(int(length))
		if err != nil {
			return err
		}
		p.packedPrev = prev
		p.state = statePacked
		return nil
	}

	if f != nil && wt == WireTypeOf(f.Kind) && f.Kind != schema.KindMessage &&
		f.Kind != schema.KindString && f.Kind != schema.KindBytes {
		value, err := readScalar(p.cur, f)
		if err != nil {
			return err
		}
		if err := top.sink.ConsumeField(f, value); err != nil {
			return err
		}
		p.field = nil
		p.state = stateTag
		return nil
	}

	// Unknown field, or a known field arriving with a mismatched wire
	// type: classified by wire type alone and skipped.
	p.field = nil
	switch wt {
	case WireVarint:
		if _, err := p.cur.ReadVarint(); err != nil {
			return err
		}
		p.state = stateTag
		return nil
	case WireFixed32:
		p.skipLeft = Fixed32Size
	case WireFixed64:
		p.skipLeft = Fixed64Size
	case WireBytes:
		length, err := p.cur.ReadVarint()
		if err != nil {
			return err
		}
		p.skipLeft = int(length)
	default:
		return ErrInvalidTag
	}
	p.state = stateSkip
	return nil
}

// pushFrame enters a nested message bounded to the next length bytes.
func (p *Parser) pushFrame(f *schema.Field, length int) error {
	if len(p.frames) >= p.maxDepth {
		return ErrRecursionLimit
	}
	prev, err := p.cur.PushLimit(length)
	if err != nil {
		return err
	}
	p.frames = append(p.frames, frame{
		desc:      f.Message,
		sink:      f.Message.NewMessage(),
		field:     f,
		prevLimit: prev,
	})
	p.field = nil
	p.state = stateTag
	return nil
}

// stepBytes fills the arena-resident payload view. On suspension the view
// is refilled from the start after resumption; the arena allocation happens
// exactly once per field.
func (p *Parser) stepBytes() error {
	if err := p.cur.ReadFull(p.scratch); err != nil {
		return err
	}
	f := p.field
	top := &p.frames[len(p.frames)-1]
	if err := top.sink.ConsumeField(f, finishLenValue(f.Kind, p.scratch)); err != nil {
		return err
	}
	p.scratch = nil
	p.field = nil
	p.state = stateTag
	return nil
}

// stepSkip discards the remainder of an unknown field, committing partial
// progress across suspensions.
func (p *Parser) stepSkip() error {
	n, err := p.cur.Discard(p.skipLeft)
	p.skipLeft -= n
	if err != nil {
		return err
	}
	p.state = stateTag
	return nil
}

// stepPacked reads packed elements one at a time until the blob's limit.
func (p *Parser) stepPacked() error {
	if p.cur.AtLimit() {
		p.cur.PopLimit(p.packedPrev)
		p.field = nil
		p.state = stateTag
		return nil
	}
	f := p.field
	value, err := readScalar(p.cur, f)
	if err != nil {
		return err
	}
	top := &p.frames[len(p.frames)-1]
	return top.sink.ConsumeField(f, value)
}

// ===== WHOLE-BUFFER ENTRY POINTS =====

// Parse decodes a complete message from a contiguous buffer, driving the
// same state machine the streaming parser uses.
func Parse(data []byte, desc *schema.Descriptor, opts ...Option) (map[string]any, error) {
	v, err := ParseValue(data, desc, opts...)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("wire: descriptor %s produces %T, not map[string]any", desc.Name, v)
	}
	return m, nil
}

// ParseValue is Parse for descriptors with a custom sink representation.
func ParseValue(data []byte, desc *schema.Descriptor, opts ...Option) (any, error) {
	p := newMachine(NewBufferCursor(data), desc, nil, DefaultMaxDepth)
	for _, opt := range opts {
		opt(p)
	}
	if p.arena == nil {
		if p.arenaCap == 0 {
			p.arenaCap = defaultArenaCapacity
		}
		p.arena = arena.New(p.arenaCap)
	}
	if _, err := p.run(nil); err != nil {
		return nil, err
	}
	return p.result, nil
}

// readMessageValue reads one length-delimited nested message by running a
// fresh machine over the same cursor under a pushed limit. Codec-path only:
// a suspension surfaces as ErrNeedMoreData here (the fresh machine cannot be
// resumed), so it is not for incremental chunked input.
func readMessageValue(cur Cursor, desc *schema.Descriptor, a *arena.Arena, maxDepth int) (any, error) {
	length, err := cur.ReadVarint()
	if err != nil {
		return nil, err
	}
	prev, err := cur.PushLimit(int(length))
	if err != nil {
		return nil, err
	}
	m := newMachine(cur, desc, a, maxDepth)
	status, err := m.run(nil)
	if err != nil {
		return nil, err
	}
	if status.State != StateDone {
		return nil, ErrNeedMoreData
	}
	cur.PopLimit(prev)
	return m.result, nil
}
