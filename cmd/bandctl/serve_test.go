//go:build test

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ServeTestSuite struct {
	CommandTestSuite
}

func (s *ServeTestSuite) TestStopsOnCancel() {
	// GOAL: Verify serve runs until its context is cancelled
	//
	// TEST SCENARIO: serve on an ephemeral port → cancel → returns context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.ExecuteCommandContext(ctx, "serve", "--listen", "127.0.0.1:0")
		done <- err
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled, "serve MUST return when cancelled")
	case <-time.After(5 * time.Second):
		s.FailNow("serve MUST stop after cancel")
	}
}

func (s *ServeTestSuite) TestBadListenAddress() {
	_, err := s.ExecuteCommand("serve", "--listen", "127.0.0.1:99999")
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to listen")
}

func TestServeTestSuite(t *testing.T) {
	suite.Run(t, new(ServeTestSuite))
}
