package ftp

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPORT(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		addr    string
		want    string
		wantErr bool
	}{
		{name: "loopback", addr: "127.0.0.1:5120", want: "127,0,0,1,20,0"},
		{name: "high port", addr: "192.168.1.100:50000", want: "192,168,1,100,195,80"},
		{name: "port zero", addr: "10.0.0.1:0", want: "10,0,0,1,0,0"},
		{name: "ipv6", addr: "[::1]:2121", wantErr: true},
		{name: "hostname", addr: "localhost:21", wantErr: true},
		{name: "no port", addr: "127.0.0.1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatPORT(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActiveDataConn(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	adc := &activeDataConn{listener: ln, timeout: time.Second}
	assert.Equal(t, ln.Addr(), adc.LocalAddr())
	assert.Nil(t, adc.RemoteAddr())

	received := make(chan []byte, 1)
	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	_, err = adc.Write([]byte("payload"))
	require.NoError(t, err)
	assert.NotNil(t, adc.RemoteAddr())

	require.NoError(t, adc.SetDeadline(time.Now().Add(time.Hour)))
	require.NoError(t, adc.SetReadDeadline(time.Now().Add(time.Hour)))
	require.NoError(t, adc.SetWriteDeadline(time.Now().Add(time.Hour)))

	require.NoError(t, adc.Close())
	assert.Equal(t, []byte("payload"), <-received)
}

func TestActiveDataConn_CloseWithoutTransfer(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	adc := &activeDataConn{listener: ln, timeout: time.Second}

	eof := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			eof <- err
			return
		}
		defer conn.Close()
		_, err = conn.Read(make([]byte, 1))
		eof <- err
	}()

	// Close accepts the pending connection so the peer sees end of stream.
	require.NoError(t, adc.Close())
	assert.ErrorIs(t, <-eof, io.EOF)
}
