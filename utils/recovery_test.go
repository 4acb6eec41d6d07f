package utils

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSafeGoWithErrorReportsPanic(t *testing.T) {
	out := &syncBuffer{}
	logger := NewConsoleLogger(out, false)

	errs := make(chan error, 1)
	SafeGoWithError(logger, "vacuum history", func() error {
		panic("disk gone")
	}, func(err error) { errs <- err })

	err := <-errs
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "vacuum history")
	assert.Contains(t, err.Error(), "disk gone")
	assert.Contains(t, out.String(), "Stack trace")
}

func TestSafeGoWithErrorPassesError(t *testing.T) {
	logger := NewConsoleLogger(&syncBuffer{}, false)
	want := errors.New("locked")

	errs := make(chan error, 1)
	SafeGoWithError(logger, "vacuum history", func() error { return want },
		func(err error) { errs <- err })
	assert.Same(t, want, <-errs)

	done := make(chan struct{})
	SafeGoWithError(logger, "ok", func() error { close(done); return nil },
		func(error) { t.Error("onError called for a nil error") })
	<-done
}

func TestSafeGoRecovers(t *testing.T) {
	out := &syncBuffer{}
	logger := NewConsoleLogger(out, false)

	done := make(chan struct{})
	SafeGo(logger, "load image", func() {
		defer close(done)
		panic("bad png")
	})
	<-done
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Panic recovered in load image")
	}, time.Second, 10*time.Millisecond)
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "x"))
	base := errors.New("bad base64")
	err := WrapError(base, "failed to decode saved password")
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "failed to decode saved password: bad base64", err.Error())
}
