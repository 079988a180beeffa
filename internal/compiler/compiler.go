// Package compiler turns an XML topology description into the flat record
// stream defined by package records.
package compiler

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/KevinKickass/ecconf/internal/outbuf"
	"github.com/KevinKickass/ecconf/internal/records"
	"github.com/KevinKickass/ecconf/internal/slavetypes"
	"go.uber.org/zap"
)

const DefaultChunkSize = 8192

// Counters observes progress while a document is compiled.
type Counters interface {
	IncMaster()
	IncSlave()
}

type nopCounters struct{}

func (nopCounters) IncMaster() {}
func (nopCounters) IncSlave()  {}

// InitCmdSink receives the configuration writes of an init command file.
// Writes are attributed to the slave that owns the initCmds element.
type InitCmdSink interface {
	AddSdoConfig(index uint16, subIndex int16, data []byte) error
	AddIdnConfig(drive uint8, idn uint16, state uint8, data []byte) error
}

// InitCmdLoader expands an initCmds file into SDO/IDN configuration.
type InitCmdLoader interface {
	LoadInitCmds(filename string, sink InitCmdSink) error
}

type Options struct {
	Types          *slavetypes.Registry
	Counters       Counters
	InitCmds       InitCmdLoader
	ChunkSize      int
	MaxBufferBytes int
	Logger         *zap.Logger
}

type Compiler struct {
	types     *slavetypes.Registry
	counters  Counters
	initCmds  InitCmdLoader
	chunkSize int
	maxBuffer int
	logger    *zap.Logger
}

func New(opts Options) *Compiler {
	c := &Compiler{
		types:     opts.Types,
		counters:  opts.Counters,
		initCmds:  opts.InitCmds,
		chunkSize: opts.ChunkSize,
		maxBuffer: opts.MaxBufferBytes,
		logger:    opts.Logger,
	}
	if c.types == nil {
		c.types = slavetypes.NewRegistry()
	}
	if c.counters == nil {
		c.counters = nopCounters{}
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Blob is a finished compilation.
type Blob struct {
	Header  records.Header
	Records []byte
	Masters int
	Slaves  int
}

// Bytes renders the header followed by the records.
func (b *Blob) Bytes() []byte {
	return append(records.EncodeHeader(b.Header), b.Records...)
}

// Compile reads one document from r. Any error aborts the whole
// compilation and no partial output is returned.
func (c *Compiler) Compile(ctx context.Context, r io.Reader) (*Blob, error) {
	buf := outbuf.New(c.maxBuffer)
	defer buf.Release()

	s := &parseState{
		c:   c,
		buf: buf,
		dec: xml.NewDecoder(bufio.NewReaderSize(r, c.chunkSize)),
	}

	if err := s.run(ctx); err != nil {
		c.logger.Error("Compilation aborted", zap.Error(err))
		return nil, err
	}

	if _, err := outbuf.Alloc(buf, &records.Terminator{Kind: records.KindNone}); err != nil {
		return nil, s.resourceErr(err)
	}

	blob := &Blob{
		Header: records.Header{
			Magic:  records.Magic,
			Length: uint32(buf.Len()),
		},
		Records: make([]byte, buf.Len()),
		Masters: s.masters,
		Slaves:  s.slaves,
	}
	if _, err := buf.CopyTo(blob.Records); err != nil {
		return nil, fmt.Errorf("failed to finalize output: %w", err)
	}

	c.logger.Info("Compilation finished",
		zap.Int("masters", blob.Masters),
		zap.Int("slaves", blob.Slaves),
		zap.Uint32("length", blob.Header.Length))

	return blob, nil
}

// frame is one open element.
type frame struct {
	kind records.Kind
	rec  outbuf.Handle

	// slave frames
	slaveType    *slavetypes.Type
	dcSeen       bool
	watchdogSeen bool

	// pdoEntry frames
	valueKind records.ValueKind
	bitLength int
	bitOffset int

	// sdoConfig and idnConfig frames
	dataSeen bool
}

type parseState struct {
	c     *Compiler
	buf   *outbuf.Buffer
	dec   *xml.Decoder
	stack []frame

	sawRoot bool
	masters int
	slaves  int
}

func (s *parseState) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("compilation cancelled: %w", err)
		}

		tok, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var syntax *xml.SyntaxError
			if errors.As(err, &syntax) {
				return &Error{Kind: ErrStructural, Line: syntax.Line, Msg: syntax.Msg}
			}
			return s.errorf(ErrStructural, "", "", err, "failed to read document")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := s.open(t); err != nil {
				return err
			}
		case xml.EndElement:
			s.stack = s.stack[:len(s.stack)-1]
		}
	}

	if len(s.stack) != 0 {
		return s.errorf(ErrStructural, "", "", nil, "unexpected end of document")
	}
	if !s.sawRoot {
		return &Error{Kind: ErrStructural, Msg: "document has no masters element"}
	}
	return nil
}

func (s *parseState) context() records.Kind {
	if len(s.stack) == 0 {
		return records.KindNone
	}
	return s.stack[len(s.stack)-1].kind
}

func (s *parseState) open(t xml.StartElement) error {
	if t.Name.Space != "" {
		return s.errorf(ErrStructural, "", "", nil, "unexpected namespaced element %s:%s", t.Name.Space, t.Name.Local)
	}

	el, ok := elementKind(t.Name.Local)
	if !ok {
		return s.errorf(ErrStructural, "", "", nil, "unknown element %s", t.Name.Local)
	}
	handler, ok := transition(s.context(), el)
	if !ok {
		return s.errorf(ErrStructural, "", "", nil, "element %s not allowed in %s", el, s.context())
	}

	s.stack = append(s.stack, frame{kind: el})
	f := &s.stack[len(s.stack)-1]
	attrs := plainAttrs(t.Attr)
	if a, dup := duplicateAttr(attrs); dup {
		return s.errorf(ErrAttribute, a.Name.Local, a.Value, nil, "duplicate attribute")
	}
	if err := handler(s, f, attrs); err != nil {
		return err
	}

	s.c.logger.Debug("Element compiled",
		zap.Stringer("element", el),
		zap.Int("offset", f.rec.Off),
		zap.Int("depth", len(s.stack)))
	return nil
}

// nearest returns the innermost open frame of the given element.
func (s *parseState) nearest(kind records.Kind) *frame {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].kind == kind {
			return &s.stack[i]
		}
	}
	return nil
}

// parent returns the frame enclosing the current one.
func (s *parseState) parent() *frame {
	if len(s.stack) < 2 {
		return nil
	}
	return &s.stack[len(s.stack)-2]
}

func (s *parseState) errorf(kind ErrorKind, attr, value string, cause error, format string, args ...any) *Error {
	line, col := s.dec.InputPos()
	return &Error{
		Kind:    kind,
		Element: s.context().String(),
		Attr:    attr,
		Value:   value,
		Line:    line,
		Column:  col,
		Msg:     fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

func (s *parseState) attrErr(a xml.Attr, cause error) *Error {
	return s.errorf(ErrAttribute, a.Name.Local, a.Value, cause, "invalid value")
}

func (s *parseState) unknownAttr(a xml.Attr) *Error {
	return s.errorf(ErrAttribute, a.Name.Local, a.Value, nil, "unknown attribute")
}

func (s *parseState) missing(attr string) *Error {
	return s.errorf(ErrRequired, attr, "", nil, "missing required attribute")
}

func (s *parseState) resourceErr(err error) *Error {
	return s.errorf(ErrResource, "", "", err, "failed to grow output")
}

// alloc appends a record and converts a buffer failure into a resource
// error.
func alloc[T any](s *parseState, v *T) (outbuf.Handle, error) {
	h, err := outbuf.Alloc(s.buf, v)
	if err != nil {
		return outbuf.Handle{}, s.resourceErr(err)
	}
	return h, nil
}

func update[T any](s *parseState, h outbuf.Handle, fn func(*T)) error {
	if err := outbuf.Update(s.buf, h, fn); err != nil {
		return s.resourceErr(err)
	}
	return nil
}

func (s *parseState) load(f *frame, v any) error {
	if f == nil {
		return fmt.Errorf("no enclosing record")
	}
	if _, err := binary.Decode(s.buf.Bytes(f.rec), binary.LittleEndian, v); err != nil {
		return s.resourceErr(err)
	}
	return nil
}
