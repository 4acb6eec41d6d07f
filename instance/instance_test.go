package instance

import (
	"io"
	"net"
	"testing"
	"time"

	"askforge-client/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestSecondInstanceSignalsFirst(t *testing.T) {
	logger := utils.NewConsoleLogger(io.Discard, false)
	addr := freeAddr(t)

	first, err := Acquire(addr, logger)
	require.NoError(t, err)
	defer first.Close()

	shown := make(chan struct{}, 1)
	first.OnShow(func() { shown <- struct{}{} })

	second, err := Acquire(addr, logger)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	select {
	case <-shown:
	case <-time.After(3 * time.Second):
		t.Fatal("first instance was not asked to show")
	}
}

func TestAcquireAfterClose(t *testing.T) {
	logger := utils.NewConsoleLogger(io.Discard, false)
	addr := freeAddr(t)

	first, err := Acquire(addr, logger)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	again, err := Acquire(addr, logger)
	require.NoError(t, err)
	assert.Equal(t, addr, again.Addr())
	again.Close()
}

func TestForeignListenerIsNotAnInstance(t *testing.T) {
	logger := utils.NewConsoleLogger(io.Discard, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, err = Acquire(ln.Addr().String(), logger)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
}
