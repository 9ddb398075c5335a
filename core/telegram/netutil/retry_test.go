package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}

	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.True(t, ShouldRetry(context.DeadlineExceeded))
	assert.True(t, ShouldRetry(fmt.Errorf("send: %w", dialErr)))
	assert.False(t, ShouldRetry(errors.New("bad request")))
	assert.False(t, ShouldRetry(tele.ErrBlockedByUser))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
	assert.Equal(t, "timeout", Classify(context.DeadlineExceeded))
	assert.Equal(t, "dial", Classify(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "dns", Classify(&net.DNSError{Err: "no such host", Name: "api.telegram.org"}))
	assert.Equal(t, "http_4xx", Classify(tele.ErrBlockedByUser))
	assert.Equal(t, "unknown", Classify(errors.New("boom")))
}
