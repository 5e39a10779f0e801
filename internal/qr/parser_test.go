package qr

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ParserSuite struct {
	suite.Suite
}

func TestParserSuite(t *testing.T) {
	suite.Run(t, new(ParserSuite))
}

const samplePayload = `{"name":"Ravi Kumar","dob":"1990-01-15","username":"ravi","verifiedAt":"2026-08-30T10:00:00Z"}`

func (s *ParserSuite) TestAcceptedEncodings() {
	s.Run("bare JSON", func() {
		payload, err := Parse(samplePayload)
		s.Require().NoError(err)
		s.Equal("Ravi Kumar", payload.Name)
		s.Equal("1990-01-15", payload.DOB)
	})

	s.Run("JSON with surrounding whitespace", func() {
		payload, err := Parse("  \n" + samplePayload + "\t ")
		s.Require().NoError(err)
		s.Equal("ravi", payload.Username)
	})

	s.Run("verification URL with data parameter", func() {
		payload, err := Parse("https://verify.example.com/scan?data=%7B%22name%22%3A%22Ravi%20Kumar%22%7D")
		s.Require().NoError(err)
		s.Equal("Ravi Kumar", payload.Name)
	})

	s.Run("verification URL with payload parameter", func() {
		raw := "https://verify.example.com/scan?payload=" + url.QueryEscape(samplePayload)
		payload, err := Parse(raw)
		s.Require().NoError(err)
		s.Equal("ravi", payload.Username)
	})

	s.Run("URL-escaped JSON without a URL", func() {
		payload, err := Parse(url.QueryEscape(samplePayload))
		s.Require().NoError(err)
		s.Equal("Ravi Kumar", payload.Name)
	})

	s.Run("standard base64 JSON", func() {
		payload, err := Parse(base64.StdEncoding.EncodeToString([]byte(samplePayload)))
		s.Require().NoError(err)
		s.Equal("ravi", payload.Username)
	})

	s.Run("url-safe base64 JSON", func() {
		payload, err := Parse(base64.URLEncoding.EncodeToString([]byte(samplePayload)))
		s.Require().NoError(err)
		s.Equal("ravi", payload.Username)
	})
}

func (s *ParserSuite) TestRejections() {
	s.Run("empty input", func() {
		_, err := Parse("   ")
		s.Require().ErrorIs(err, ErrMissingPayload)
	})

	s.Run("URL without a recognized parameter", func() {
		_, err := Parse("https://verify.example.com/scan?foo=bar")
		s.Require().ErrorIs(err, ErrMissingPayload)
	})

	s.Run("truncated JSON", func() {
		_, err := Parse(`{"name":"Ravi Kumar"`)
		s.Require().Error(err)
	})

	s.Run("random text", func() {
		_, err := Parse("hello world this is not a payload")
		s.Require().Error(err)
	})

	s.Run("base64 of non-JSON", func() {
		_, err := Parse(base64.StdEncoding.EncodeToString([]byte("still not json")))
		s.Require().Error(err)
	})
}

func (s *ParserSuite) TestRequestedAttributes() {
	payload, err := Parse(`{"username":"ravi","verificationRequested":{"name":true,"age":false}}`)
	s.Require().NoError(err)
	s.True(payload.VerificationRequested["name"])
	s.False(payload.VerificationRequested["age"])
}
