package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// dateLayouts are tried in order. "2006-1-2" also accepts zero-padded fields.
var dateLayouts = []string{"2006-1-2", "2006-01-02 15:04:05", "2006/1/2", time.RFC3339}

type readCloser struct {
	io.Reader
	io.Closer
}

// openText opens path, strips a UTF-8 BOM and transcodes from encoding when it
// is not UTF-8.
func openText(path, encoding string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := decodeText(f, encoding)
	if err != nil {
		f.Close()
		return nil, err
	}
	return readCloser{Reader: r, Closer: f}, nil
}

func decodeText(r io.Reader, encoding string) (io.Reader, error) {
	if encoding == "" || isUTF8(encoding) {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	e, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, e.NewDecoder()), nil
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}

// newDecoder reads the header itself so that cells can be trimmed and lowercased
// before csvutil binds them to struct tags. Every name in required must be present.
func newDecoder(r io.Reader, required ...string) (*csvutil.Decoder, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file: no header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	present := make(map[string]bool, len(header))
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		present[header[i]] = true
	}
	for _, col := range required {
		if !present[col] {
			return nil, fmt.Errorf("column %q not found in header %v", col, header)
		}
	}

	return csvutil.NewDecoder(cr, header...)
}

// decodeAll decodes records into T until EOF. A malformed line is counted and
// skipped; any other error stops the read.
func decodeAll[T any](dec *csvutil.Decoder, each func(*T) bool) (Stats, error) {
	var st Stats
	for {
		var rec T
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		st.Read++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) || errors.Is(err, csvutil.ErrFieldCount) {
				st.Skipped++
				continue
			}
			return st, fmt.Errorf("decode record %d: %w", st.Read, err)
		}
		if each(&rec) {
			st.Valid++
		} else {
			st.Skipped++
		}
	}
	return st, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseFloat returns nil for blank, "nan", "n/a" and anything unparseable.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	switch strings.ToLower(s) {
	case "", "nan", "n/a", "na", "null", "-":
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseInt64 truncates a numeric cell; values outside the int64 range are nil.
func parseInt64(s string) *int64 {
	f := parseFloat(s)
	if f == nil || *f >= math.MaxInt64 || *f < math.MinInt64 {
		return nil
	}
	n := int64(*f)
	return &n
}

// intOrZero parses an integer cell, accepting "12.0", and maps blanks to 0.
func intOrZero(s string) int {
	if n := parseInt64(s); n != nil {
		return int(*n)
	}
	return 0
}
