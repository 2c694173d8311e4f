package codec

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Validation limits, grounded on Core/Validation.py.
const (
	MaxLidLen        = 64
	MaxLabelLen      = 64
	MaxCommentLen    = 256
	MinTagLen        = 3
	MaxTagLen        = 64
	MaxValueUnitLen  = 128
	MaxSearchTextLen = 128

	// TimeFormat is the wire datetime layout: 2006-01-02T15:04:05.000000Z.
	TimeFormat = "2006-01-02T15:04:05.000000Z"
)

var (
	patternLeadTrailWhitespace = regexp.MustCompile(`^\s|\s$`)
	patternWhitespace          = regexp.MustCompile(`\s`)
	patternLanguage            = regexp.MustCompile(`(?i)^[a-z]{2}$`)
	patternTag                 = regexp.MustCompile(fmt.Sprintf(`^[\w.-]{%d,%d}$`, MinTagLen, MaxTagLen))
	patternURLPart             = regexp.MustCompile(`^\S{3}\S*$`)
)

// ValueMetaTypes are the recognised xsd primitive (or derived) type names
// for a Value's vtype.
var ValueMetaTypes = map[string]bool{
	"string": true, "boolean": true, "decimal": true, "float": true, "double": true,
	"duration": true, "dateTime": true, "time": true, "date": true, "gYearMonth": true,
	"gYear": true, "gMonthDay": true, "gDay": true, "gMonth": true, "hexBinary": true,
	"base64Binary": true, "anyURI": true, "QName": true, "NOTATION": true,
	"normalizedString": true, "token": true, "language": true, "NMTOKEN": true,
	"NMTOKENS": true, "Name": true, "NCName": true, "ID": true, "IDREF": true,
	"IDREFS": true, "ENTITY": true, "ENTITIES": true, "integer": true,
	"nonPositiveInteger": true, "negativeInteger": true, "long": true, "int": true,
	"short": true, "byte": true, "nonNegativeInteger": true, "unsignedLong": true,
	"unsignedInt": true, "unsignedShort": true, "unsignedByte": true, "positiveInteger": true,
}

type stringCheckOpts struct {
	noLeadTrailWhitespace bool
	noWhitespace          bool
	noNewline             bool
	asTag                 bool
	minLen                int
	maxLen                int
}

func defaultStringCheckOpts() stringCheckOpts {
	return stringCheckOpts{noLeadTrailWhitespace: true, noNewline: true, minLen: 1}
}

// CheckString validates a free-form identifier/label string, mirroring
// check_convert_string: non-empty, no leading/trailing whitespace and no
// embedded newline by default.
func CheckString(name, s string, opts ...func(*stringCheckOpts)) (string, error) {
	o := defaultStringCheckOpts()
	for _, fn := range opts {
		fn(&o)
	}
	if name == "" {
		name = "argument"
	}
	if o.noWhitespace {
		if patternWhitespace.MatchString(s) {
			return "", fmt.Errorf("%s cannot contain whitespace", name)
		}
	} else if o.noLeadTrailWhitespace && patternLeadTrailWhitespace.MatchString(s) {
		return "", fmt.Errorf("%s contains leading/trailing whitespace", name)
	}
	if (o.minLen > 0 && len(s) < o.minLen) || (o.maxLen > 0 && len(s) > o.maxLen) {
		return "", fmt.Errorf("%s too short/long (%d/%d)", name, o.minLen, o.maxLen)
	}
	if o.asTag {
		if !patternTag.MatchString(s) {
			return "", fmt.Errorf("%s can only contain alphanumeric (unicode) characters, numbers and the underscore", name)
		}
	} else if o.noNewline && strings.Contains(s, "\n") {
		return "", fmt.Errorf("%s cannot contain line breaks", name)
	}
	return s, nil
}

func withMaxLen(n int) func(*stringCheckOpts) {
	return func(o *stringCheckOpts) { o.maxLen = n }
}

func withNoNewline(v bool) func(*stringCheckOpts) {
	return func(o *stringCheckOpts) { o.noNewline = v }
}

// CheckLid validates a thing or point local id.
func CheckLid(lid string) (string, error) {
	return CheckString("lid", lid, withMaxLen(MaxLidLen))
}

// CheckTags validates one or more tags, each 3-64 word characters/./-.
func CheckTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("tag list is empty")
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		v, err := CheckString("tags", t, func(o *stringCheckOpts) {
			o.noWhitespace = true
			o.asTag = true
			o.minLen = MinTagLen
			o.maxLen = MaxTagLen
		})
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CheckLang validates a 2-letter language code, falling back to def when
// lang is empty.
func CheckLang(lang, def string) (string, error) {
	if lang == "" {
		lang = def
	}
	if !patternLanguage.MatchString(lang) {
		return "", fmt.Errorf("language should only contain a-z characters")
	}
	return strings.ToLower(lang), nil
}

// CheckMime validates a mime string length (1 < len < MaxMimeLength).
func CheckMime(mime string) (string, error) {
	if len(mime) > 1 && len(mime) < MaxMimeLength {
		return mime, nil
	}
	return "", fmt.Errorf("mime too long (%d)", MaxMimeLength)
}

// CheckLabel validates a label (<= 64 chars).
func CheckLabel(label string) (string, error) {
	return CheckString("label", label, withMaxLen(MaxLabelLen))
}

// CheckDescription validates a description/comment (<= 256 chars, newlines
// permitted).
func CheckDescription(desc string) (string, error) {
	return CheckString("comment", desc, withMaxLen(MaxCommentLen), withNoNewline(false))
}

// CheckValueType validates a Value's vtype against the xsd type set.
func CheckValueType(vtype string) (string, error) {
	if !ValueMetaTypes[vtype] {
		return "", fmt.Errorf("value type not a valid xsd primitive (or derived) type name")
	}
	return vtype, nil
}

// CheckValueUnit validates a Value's unit as a bare http(s) URL.
func CheckValueUnit(unit string) (string, error) {
	if unit == "" {
		return "", nil
	}
	if len(unit) > MaxValueUnitLen {
		return "", fmt.Errorf("unit too long (%d)", MaxValueUnitLen)
	}
	if !validURL(unit) {
		return "", fmt.Errorf("unit does not resemble valid http(s) url")
	}
	return unit, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return patternURLPart.MatchString(u.Host) && patternURLPart.MatchString(u.Path)
}

// CheckLocation validates a latitude/longitude pair.
func CheckLocation(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %f invalid", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %f invalid", lon)
	}
	return nil
}

// CheckDatetime formats t per TimeFormat, requiring a UTC (or unspecified)
// offset.
func CheckDatetime(t time.Time) (string, error) {
	if t.Location() != time.UTC && t.Location() != time.Local {
		_, offset := t.Zone()
		if offset != 0 {
			return "", fmt.Errorf("datetime instance must be naive or have zero UTC offset")
		}
	}
	return t.UTC().Format(TimeFormat), nil
}
