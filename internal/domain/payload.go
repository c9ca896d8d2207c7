package domain

import (
	"encoding/base64"
	"regexp"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	base64AlphabetRe = regexp.MustCompile(`^[A-Za-z0-9+/=_-]+$`)
	embeddedTokenRe  = regexp.MustCompile(`[A-Za-z0-9+/=_-]{8,}`)
)

// decodeBase64URL decodes base64url input, tolerating missing padding and the
// standard '+' and '/' characters. Reports false for blank or malformed input.
func decodeBase64URL(s string) ([]byte, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// printable renders bytes as ASCII, replacing anything outside [32,126] with a
// space so literal substrings in a protobuf payload stay visible.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 32 && c <= 126 {
			out[i] = c
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}

// expandBlobs returns the printable rendering of a decoded payload and, when
// that rendering is itself base64, the rendering of the nested payload.
func expandBlobs(decoded []byte) []string {
	primary := printable(decoded)
	blobs := []string{primary}

	compact := strings.Join(strings.Fields(primary), "")
	if pad := len(compact) % 4; pad != 0 {
		compact += strings.Repeat("=", 4-pad)
	}
	if !base64AlphabetRe.MatchString(compact) {
		return blobs
	}

	nested, ok := decodeBase64URL(compact)
	if !ok {
		return blobs
	}
	if secondary := printable(nested); strings.TrimSpace(secondary) != "" {
		blobs = append(blobs, secondary)
	}
	return blobs
}

// scanVarints walks a length-delimited structure one key byte at a time:
// wire type 0 yields its varint value, wire type 2 recurses into the next
// length-prefixed slice, and anything else (or truncation) ends the scan.
func scanVarints(data []byte) []uint64 {
	var values []uint64
	for i := 0; i < len(data); {
		wireType := protowire.Type(data[i] & 0x07)
		i++

		switch wireType {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data[i:])
			if n < 0 {
				return values
			}
			values = append(values, v)
			i += n
		case protowire.BytesType:
			if i >= len(data) {
				return values
			}
			length := int(data[i])
			i++
			if i+length > len(data) {
				return values
			}
			values = append(values, scanVarints(data[i:i+length])...)
			i += length
		default:
			return values
		}
	}
	return values
}

// scanTimes lists HH:MM tokens in order, then compact HHMM tokens in order.
// Colon tokens must not touch other digits; compact tokens must not touch
// digits or uppercase letters.
func scanTimes(blob string) []string {
	var times []string
	for i := 0; i+5 <= len(blob); {
		tok := blob[i : i+5]
		if tok[2] == ':' && isHourMinute(tok[:2], tok[3:]) &&
			!isDigitAt(blob, i-1) && !isDigitAt(blob, i+5) {
			times = append(times, tok)
			i += 5
			continue
		}
		i++
	}
	for i := 0; i+4 <= len(blob); {
		tok := blob[i : i+4]
		if isHourMinute(tok[:2], tok[2:]) &&
			!isDigitOrUpperAt(blob, i-1) && !isDigitOrUpperAt(blob, i+4) {
			times = append(times, tok)
			i += 4
			continue
		}
		i++
	}
	return times
}

// isHourMinute reports whether hh is 00–23 and mm is 00–59, both two digits.
func isHourMinute(hh, mm string) bool {
	if !isDigits(hh) || !isDigits(mm) {
		return false
	}
	h := int(hh[0]-'0')*10 + int(hh[1]-'0')
	m := int(mm[0]-'0')*10 + int(mm[1]-'0')
	return h <= 23 && m <= 59
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isDigitAt(s string, i int) bool {
	return i >= 0 && i < len(s) && s[i] >= '0' && s[i] <= '9'
}

func isDigitOrUpperAt(s string, i int) bool {
	return isDigitAt(s, i) || (i >= 0 && i < len(s) && s[i] >= 'A' && s[i] <= 'Z')
}
