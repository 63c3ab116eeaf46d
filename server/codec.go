package server

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

// lineTerminator ends every request and response line.
const lineTerminator = "\r\n"

var (
	controlReaderPool = sync.Pool{
		New: func() any { return bufio.NewReaderSize(nil, 4096) },
	}
	controlWriterPool = sync.Pool{
		New: func() any { return bufio.NewWriterSize(nil, 4096) },
	}
)

// lineCodec frames the command connection into CRLF-terminated lines.
type lineCodec struct {
	reader *bufio.Reader
	writer *bufio.Writer
}

func newLineCodec(rw io.ReadWriter) *lineCodec {
	reader := controlReaderPool.Get().(*bufio.Reader)
	reader.Reset(rw)

	writer := controlWriterPool.Get().(*bufio.Writer)
	writer.Reset(rw)

	return &lineCodec{reader: reader, writer: writer}
}

// release returns the buffers to their pools. The codec must not be used
// afterwards.
func (c *lineCodec) release() {
	if c.reader != nil {
		c.reader.Reset(nil)
		controlReaderPool.Put(c.reader)
		c.reader = nil
	}
	if c.writer != nil {
		c.writer.Reset(nil)
		controlWriterPool.Put(c.writer)
		c.writer = nil
	}
}

// readLine returns the next request line without its CRLF terminator.
//
// A bare LF does not end a line. If the stream ends before a terminator is
// seen, any partial content is discarded and io.EOF is returned, which the
// session treats as the client hanging up.
func (c *lineCodec) readLine() (string, error) {
	var line []byte
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return "", err
		}

		if len(line) >= MaxCommandLength {
			return "", errLineTooLong
		}
		line = append(line, b)

		if b == '\n' && len(line) >= 2 && line[len(line)-2] == '\r' {
			return string(line[:len(line)-2]), nil
		}
	}
}

// writeLine writes msg followed by CRLF (unless msg already ends with it) and
// flushes. msg must not contain an embedded terminator.
func (c *lineCodec) writeLine(msg string) error {
	if !strings.HasSuffix(msg, lineTerminator) {
		msg += lineTerminator
	}
	if _, err := c.writer.WriteString(msg); err != nil {
		return err
	}
	return c.writer.Flush()
}

// writeReply writes a "<code> <message>" response line.
func (c *lineCodec) writeReply(code int, message string) error {
	return c.writeLine(fmt.Sprintf("%d %s", code, message))
}

// parseRequest splits a request line into its command and argument.
//
// A request is exactly one command token and one argument token separated by
// a single space. ok is false for anything else. The command is upper-cased.
func parseRequest(line string) (cmd, arg string, ok bool) {
	parts := strings.Split(strings.TrimSpace(line), " ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return strings.ToUpper(parts[0]), parts[1], true
}
