package convert

import (
	"fmt"
	"strings"

	"github.com/pquerna/otp"

	"github.com/chirichan/bw2kp/internal/entities"
	"github.com/chirichan/bw2kp/internal/keepass"
)

const unnamedField = "unnamed_field"

// normalizeItem maps one supported item onto a detached entry and returns
// it with the raw, not yet disambiguated title. Normalization never fails:
// absent values become empty, nameless fields get a placeholder.
func normalizeItem(item *entities.Item) (*keepass.Entry, string) {
	entry := keepass.NewEntry("", "", deref(item.Notes))
	if item.Type != entities.ItemTypeLogin || item.Login == nil {
		return entry, item.Name
	}

	login := item.Login
	entry.Username = deref(login.Username)
	entry.Password = deref(login.Password)

	if seed := deref(login.TOTP); seed != "" {
		secret, period, digits := totpSettings(seed)
		entry.SetTOTP(secret, period, digits)
	}

	setEntryURLs(entry, login.URIs)
	setCustomFields(entry, item.Fields)

	return entry, item.Name
}

// setEntryURLs routes the item's URIs. The first plain URI becomes the
// entry URL; later ones become URL_n properties so the single-URL entry
// model loses nothing. Android and iOS app ids get their own properties
// instead of occupying the URL field.
func setEntryURLs(entry *keepass.Entry, uris []entities.URI) {
	var androidApps, iosApps, extraURLs int
	for _, u := range uris {
		uri := deref(u.URI)
		if uri == "" {
			continue
		}
		switch scheme, rest, ok := strings.Cut(uri, "://"); {
		case ok && scheme == "androidapp":
			name := "AndroidApp"
			if androidApps > 0 {
				name = fmt.Sprintf("AndroidApp_%d", androidApps)
			}
			androidApps++
			entry.SetProperty(propName(entry, name), rest, false)
		case ok && scheme == "iosapp":
			iosApps++
			entry.SetProperty(propName(entry, fmt.Sprintf("iOS app #%d", iosApps)), rest, false)
		default:
			if entry.URL == "" {
				entry.URL = uri
			} else {
				extraURLs++
				entry.SetProperty(propName(entry, fmt.Sprintf("URL_%d", extraURLs)), uri, false)
			}
		}
	}
}

// setCustomFields maps custom fields to properties: hidden fields are
// protected, boolean fields render as true/false, linked fields carry no
// value of their own and are dropped, as are empty non-boolean values.
func setCustomFields(entry *keepass.Entry, fields []entities.Field) {
	for _, f := range fields {
		name := strings.TrimSpace(deref(f.Name))
		value := deref(f.Value)
		switch f.Type {
		case entities.FieldTypeBoolean:
			if value != "true" {
				value = "false"
			}
			entry.SetProperty(propName(entry, name), value, false)
		case entities.FieldTypeHidden:
			if value == "" {
				continue
			}
			entry.SetProperty(propName(entry, name), value, true)
		case entities.FieldTypeLinked:
			continue
		default:
			if value == "" {
				continue
			}
			entry.SetProperty(propName(entry, name), value, false)
		}
	}
}

// propName returns a property name that is neither a standard attribute
// key nor already used on the entry, suffixing with the first free index
// when needed. Empty names get a placeholder.
func propName(entry *keepass.Entry, name string) string {
	if name == "" {
		name = unnamedField
	}
	candidate := name
	for n := 1; keepass.IsReservedKey(candidate) || entry.HasProperty(candidate); n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	return candidate
}

const (
	defaultTOTPPeriod = 30
	defaultTOTPDigits = 6
)

// totpSettings resolves a TOTP seed to its secret, period and digits.
// Plain seeds get the RFC 6238 defaults; otpauth:// seeds are parsed and
// their parameters honored. An unparseable otpauth string degrades to the
// raw seed with defaults rather than failing the item.
func totpSettings(seed string) (secret string, period, digits int) {
	if strings.HasPrefix(strings.ToLower(seed), "otpauth://") {
		key, err := otp.NewKeyFromURL(seed)
		if err == nil {
			secret = key.Secret()
			if secret == "" {
				secret = seed
			}
			return secret, int(key.Period()), int(key.Digits())
		}
	}
	return seed, defaultTOTPPeriod, defaultTOTPDigits
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
