//go:build test

package main

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/bandlink/internal/session"
	"github.com/srg/bandlink/internal/testutils"
)

type DevicesTestSuite struct {
	CommandTestSuite
}

func (s *DevicesTestSuite) TestListsBoundDevices() {
	// GOAL: Verify devices lists what the system lookup reports
	//
	// TEST SCENARIO: One named and one unnamed bound band → devices → both listed, unnamed shown as Unknown

	s.Bound = staticLister{
		{ID: TestBandAddress1, Name: "Wrist Band"},
		{ID: TestBandAddress2},
	}

	out, err := s.ExecuteCommand("devices")
	s.Require().NoError(err, "devices MUST succeed")
	s.Contains(out, "Wrist Band")
	s.Contains(out, TestBandAddress1)
	s.Contains(out, session.UnknownName, "unnamed devices MUST get a display name")
	s.Contains(out, TestBandAddress2)
}

func (s *DevicesTestSuite) TestJSON() {
	s.Bound = staticLister{{ID: TestBandAddress1, Name: "Wrist Band"}}

	out, err := s.ExecuteCommand("devices", "--json")
	s.Require().NoError(err, "devices MUST succeed")
	testutils.NewJSONAsserter(s.T()).Assert(out, `[{"identifier": "aa:bb:cc:dd:ee:01", "name": "Wrist Band"}]`)
}

func (s *DevicesTestSuite) TestNone() {
	out, err := s.ExecuteCommand("devices")
	s.Require().NoError(err, "devices MUST succeed")
	s.Contains(out, "No bound devices")
}

func TestDevicesTestSuite(t *testing.T) {
	suite.Run(t, new(DevicesTestSuite))
}
