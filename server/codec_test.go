package server

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rw joins a reader and a writer into an io.ReadWriter.
type rw struct {
	io.Reader
	io.Writer
}

func newTestCodec(input string) (*lineCodec, *bytes.Buffer) {
	var out bytes.Buffer
	return newLineCodec(rw{strings.NewReader(input), &out}), &out
}

func TestReadLine(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec("USER root\r\nPASS root\r\n")
	defer codec.release()

	line, err := codec.readLine()
	require.NoError(t, err)
	assert.Equal(t, "USER root", line)

	line, err = codec.readLine()
	require.NoError(t, err)
	assert.Equal(t, "PASS root", line)

	_, err = codec.readLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLine_BareLFIsNotATerminator(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec("STOR a\nb\r\n")
	defer codec.release()

	line, err := codec.readLine()
	require.NoError(t, err)
	assert.Equal(t, "STOR a\nb", line)
}

func TestReadLine_PartialLineAtEOF(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec("USER root")
	defer codec.release()

	line, err := codec.readLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, line)
}

func TestReadLine_BlankLine(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec("\r\n")
	defer codec.release()

	line, err := codec.readLine()
	require.NoError(t, err)
	assert.Empty(t, line)
}

func TestReadLine_TooLong(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec(strings.Repeat("A", MaxCommandLength+10) + "\r\n")
	defer codec.release()

	_, err := codec.readLine()
	assert.ErrorIs(t, err, errLineTooLong)
}

func TestWriteLine(t *testing.T) {
	t.Parallel()

	codec, out := newTestCodec("")
	defer codec.release()

	require.NoError(t, codec.writeLine("220 Hello!"))
	require.NoError(t, codec.writeLine("200 already terminated\r\n"))
	require.NoError(t, codec.writeReply(226, "Transfer complete"))

	assert.Equal(t, "220 Hello!\r\n200 already terminated\r\n226 Transfer complete\r\n", out.String())
}

func TestParseRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line    string
		wantCmd string
		wantArg string
		wantOK  bool
	}{
		{line: "USER root", wantCmd: "USER", wantArg: "root", wantOK: true},
		{line: "user root", wantCmd: "USER", wantArg: "root", wantOK: true},
		{line: "  TYPE I  ", wantCmd: "TYPE", wantArg: "I", wantOK: true},
		{line: "PORT 127,0,0,1,20,0", wantCmd: "PORT", wantArg: "127,0,0,1,20,0", wantOK: true},
		{line: "STOR Path/Keeps/Case", wantCmd: "STOR", wantArg: "Path/Keeps/Case", wantOK: true},
		{line: "USER", wantOK: false},
		{line: "STOR my file.txt", wantOK: false},
		{line: "TYPE  I", wantOK: false},
		{line: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, arg, ok := parseRequest(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantCmd, cmd)
				assert.Equal(t, tt.wantArg, arg)
			}
		})
	}
}
