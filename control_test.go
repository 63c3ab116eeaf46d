package ftp

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		wantCode int
		wantMsg  string
		wantErr  bool
	}{
		{
			name:     "greeting",
			input:    "220 Hello!\r\n",
			wantCode: 220,
			wantMsg:  "Hello!",
		},
		{
			name:     "error response",
			input:    "550 File not exist\r\n",
			wantCode: 550,
			wantMsg:  "File not exist",
		},
		{
			name:     "code with no message",
			input:    "200 \r\n",
			wantCode: 200,
			wantMsg:  "",
		},
		{
			name:     "bare LF terminator",
			input:    "226 Transfer complete\n",
			wantCode: 226,
			wantMsg:  "Transfer complete",
		},
		{
			name:    "too short",
			input:   "22\r\n",
			wantErr: true,
		},
		{
			name:    "non numeric code",
			input:   "abc hello\r\n",
			wantErr: true,
		},
		{
			name:    "missing separator",
			input:   "220-multi\r\n",
			wantErr: true,
		},
		{
			name:    "eof",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := readResponse(bufio.NewReader(strings.NewReader(tt.input)))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestResponseClasses(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Response{Code: 150}).Is1xx())
	assert.False(t, (&Response{Code: 150}).Is2xx())
	assert.True(t, (&Response{Code: 226}).Is2xx())
	assert.Equal(t, "230 Login successful", (&Response{Code: 230, Message: "Login successful"}).String())
}

func TestProtocolError(t *testing.T) {
	t.Parallel()

	err := &ProtocolError{Command: "PORT", Response: "Not login", Code: 530}
	assert.Equal(t, "ftp: PORT failed: Not login (code 530)", err.Error())
	assert.True(t, err.IsPermanent())
	assert.False(t, err.IsTemporary())

	err = &ProtocolError{Command: "STOR", Response: "Can't open data connection", Code: 425}
	assert.True(t, err.IsTemporary())
	assert.False(t, err.IsPermanent())
}
