package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type TableTestSuite struct {
	CommandTestSuite
}

func (s *TableTestSuite) TestDiscreteText() {
	out, _, err := s.ExecuteCommand(context.Background(), "table")
	s.Require().NoError(err)

	s.Contains(out, "Device: telebridge (scheme discrete)")
	s.Contains(out, "Service 181a Environmental Sensing")
	s.Contains(out, "Service 1805 Current Time")
	s.Contains(out, "2902 Client Characteristic Configuration")
	s.Contains(out, "[5] 2a2b Current Time")
	s.Contains(out, "Advertising data: 0201060b0974656c65627269646765")
	s.Contains(out, "Scan response:    05031a180518")
}

func (s *TableTestSuite) TestBlobJSON() {
	out, _, err := s.ExecuteCommand(context.Background(), "table", "--scheme", "blob", "--no-clock", "--blob-capacity", "64", "--json")
	s.Require().NoError(err)

	var doc tableDocument
	s.Require().NoError(json.Unmarshal([]byte(out), &doc))
	s.Equal("blob", doc.Scheme)
	s.Require().Len(doc.Services, 1, "no-clock MUST drop the clock service")
	s.Equal("Telemetry Blob", doc.Services[0].Name)
	s.Require().Len(doc.Services[0].Characteristics, 1)

	c := doc.Services[0].Characteristics[0]
	s.Equal("6e400003b5a3f393e0a9e50e24dcca9e", c.UUID)
	s.Equal("read,notify", c.Properties)
	s.Equal(64, c.Capacity)
}

func (s *TableTestSuite) TestInvalidScheme() {
	_, _, err := s.ExecuteCommand(context.Background(), "table", "--scheme", "xml")
	s.ErrorContains(err, `scheme must be discrete or blob, got "xml"`)
}

func (s *TableTestSuite) TestInvalidLogLevel() {
	_, _, err := s.ExecuteCommand(context.Background(), "table", "--log-level", "loud")
	s.EqualError(err, "invalid log level: loud (must be debug, info, warn, or error)")
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}
