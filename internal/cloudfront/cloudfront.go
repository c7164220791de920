// Package cloudfront parses CloudFront standard access logs
// (tab-delimited, log format version 1.0) into page-view records.
//
// Format reference:
// https://docs.aws.amazon.com/AmazonCloudFront/latest/DeveloperGuide/AccessLogs.html
package cloudfront

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/edgestat/internal/storage"
)

// Field positions in a standard v1.0 log line.
const (
	fieldDate = iota
	fieldTime
	fieldEdgeLocation
	fieldBytes
	fieldClientIP
	fieldMethod
	fieldHost
	fieldURIStem
	fieldStatus
	fieldReferer
	fieldUserAgent
	fieldURIQuery
	fieldCookie
	fieldEdgeResultType
	fieldEdgeRequestID
	fieldHostHeader
	fieldProtocol
	fieldRequestBytes
	fieldTimeTaken

	// Further fields (x-forwarded-for through sc-range-end) exist in the
	// format but are not consumed.

	minFields = fieldTimeTaken + 1
)

// Parser converts CloudFront log lines into storage.PageView records.
// The salt feeds the one-way visitor-id hash so that raw client
// addresses never reach storage.
type Parser struct {
	hashSalt string
}

func New(hashSalt string) *Parser {
	return &Parser{hashSalt: hashSalt}
}

// Skip reports whether the line is a header/comment or blank and
// carries no record.
func Skip(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

// ParseLine parses one tab-delimited log line. An error means the line
// is malformed and should be counted and skipped; it never aborts a
// file.
func (p *Parser) ParseLine(line string) (storage.PageView, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		return storage.PageView{}, fmt.Errorf("truncated log line: %d fields, want at least %d", len(fields), minFields)
	}

	// CloudFront writes "-" for absent values.
	get := func(i int) string {
		if i >= len(fields) || fields[i] == "-" {
			return ""
		}
		return fields[i]
	}

	var pv storage.PageView

	if date, tm := get(fieldDate), get(fieldTime); date != "" && tm != "" {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+tm, time.UTC)
		if err != nil {
			return storage.PageView{}, fmt.Errorf("parse timestamp: %w", err)
		}
		pv.Timestamp = ts
	}

	pv.URLPath = unescape(get(fieldURIStem))
	pv.QueryString = unescape(get(fieldURIQuery))
	pv.HTTPMethod = get(fieldMethod)

	if status := get(fieldStatus); status != "" {
		code, err := strconv.Atoi(status)
		if err != nil {
			return storage.PageView{}, fmt.Errorf("parse status %q: %w", status, err)
		}
		pv.StatusCode = code
	}

	if referrer := unescape(get(fieldReferer)); referrer != "" {
		if u, err := url.Parse(referrer); err == nil {
			pv.ReferrerDomain = u.Host
			pv.ReferrerPath = u.Path
		}
	}

	pv.UserAgent = unescape(get(fieldUserAgent))
	pv.EdgeLocation = get(fieldEdgeLocation)
	pv.EdgeResultType = get(fieldEdgeResultType)

	if bytes := get(fieldBytes); bytes != "" {
		n, err := strconv.ParseInt(bytes, 10, 64)
		if err != nil {
			return storage.PageView{}, fmt.Errorf("parse sc-bytes %q: %w", bytes, err)
		}
		pv.BytesSent = n
	}

	if taken := get(fieldTimeTaken); taken != "" {
		// Logged in seconds with decimals.
		secs, err := strconv.ParseFloat(taken, 64)
		if err != nil {
			return storage.PageView{}, fmt.Errorf("parse time-taken %q: %w", taken, err)
		}
		pv.TimeTakenMs = int(secs * 1000)
	}

	pv.Host = get(fieldHostHeader)
	pv.ClientIP = get(fieldClientIP)
	if pv.ClientIP != "" {
		pv.VisitorID = hashVisitor(p.hashSalt, pv.ClientIP)
	}

	return pv, nil
}

// unescape percent-decodes a field, falling back to the raw value when
// it is not valid percent encoding.
func unescape(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// hashVisitor derives a privacy-preserving visitor identifier from a
// client address. The same salted address always maps to the same id,
// and the hash is one-way.
func hashVisitor(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])[:32]
}
