//go:build test

package main

import (
	"bytes"
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/testutils"
	"github.com/srg/bandlink/internal/transport/goble"
)

// Test band addresses for consistent fake device identification
const (
	TestBandAddress1 = "aa:bb:cc:dd:ee:01"
	TestBandAddress2 = "aa:bb:cc:dd:ee:02"
)

// staticLister reports a fixed set of bound devices.
type staticLister []session.DeviceHandle

func (l staticLister) BoundDevices(string) ([]session.DeviceHandle, error) {
	return l, nil
}

// CommandTestSuite extends MockBLEPeripheralSuite with command testing utilities.
// All cmd/bandctl test suites should embed this instead of MockBLEPeripheralSuite.
type CommandTestSuite struct {
	testutils.MockBLEPeripheralSuite

	// Bound is what the bound device lookup returns for the current test.
	Bound staticLister

	originalListerFactory func(*logrus.Logger) (goble.BoundLister, func(), error)
}

// SetupTest installs the fake lister and resets every flag to its default.
// Per-test peripheral configuration must happen before calling it.
func (s *CommandTestSuite) SetupTest() {
	s.MockBLEPeripheralSuite.SetupTest()

	s.originalListerFactory = boundListerFactory
	boundListerFactory = func(*logrus.Logger) (goble.BoundLister, func(), error) {
		return s.Bound, func() {}, nil
	}

	resetFlags(rootCmd)
	s.T().Setenv("BANDLINK_SCAN_DURATION", "300ms")
	s.T().Setenv("BANDLINK_CONNECT_TIMEOUT", "2s")
}

// TearDownTest restores the lister factory.
func (s *CommandTestSuite) TearDownTest() {
	boundListerFactory = s.originalListerFactory
	s.Bound = nil
	s.MockBLEPeripheralSuite.TearDownTest()
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	return s.ExecuteCommandContext(context.Background(), args...)
}

// ExecuteCommandContext runs the root command under ctx. Cobra keeps the first
// context a subcommand ran with, so every command gets ctx explicitly.
func (s *CommandTestSuite) ExecuteCommandContext(ctx context.Context, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(ctx)
	for _, c := range rootCmd.Commands() {
		c.SetContext(ctx)
	}
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores cmd and all its subcommands to default flag values so
// state set by one test does not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
