// Package recipients parses uploaded recipient lists into validated records
// ready for campaign dispatch.
package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Contact selects which contact column a parse requires. SMS campaigns need
// a phone number, email campaigns an email address.
type Contact string

const (
	ContactPhone Contact = "phone"
	ContactEmail Contact = "email"
)

// Record is one valid row from an uploaded list. Row is the 1-based file row
// it came from, counting the header as row 1.
type Record struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Row       int    `json:"row"`
}

// FullName joins first and last name with a single space.
func (r Record) FullName() string {
	return r.FirstName + " " + r.LastName
}

// Identifier returns the destination used for dispatch on the given channel.
func (r Record) Identifier(contact Contact) string {
	if contact == ContactEmail {
		return r.Email
	}
	return r.Phone
}

type InvalidRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type Stats struct {
	TotalDataRows int `json:"total_data_rows"`
	Skipped       int `json:"skipped"`
}

type ParseResult struct {
	Valid   []Record     `json:"valid"`
	Invalid []InvalidRow `json:"invalid"`
	Stats   Stats        `json:"stats"`
}

// MissingColumnsError reports which logical columns could not be matched
// against the uploaded headers, alongside the headers actually found.
type MissingColumnsError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s (found headers: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
}

// headerSynonyms maps each logical field to the header spellings seen in
// property-management exports. Matching is case-insensitive. New spellings
// are additions here, not code changes.
var headerSynonyms = map[string][]string{
	"firstName": {"first name", "firstname", "first", "fname", "given name"},
	"lastName":  {"last name", "lastname", "last", "lname", "surname"},
	"name":      {"name", "full name", "fullname", "tenant name", "resident name", "tenant"},
	"phone":     {"phone", "phone number", "mobile", "mobile number", "cell", "cell phone", "telephone"},
	"email":     {"email", "email address", "e-mail", "e-mail address", "mail"},
}

// sentinelNames mark footer/summary rows that exports append below the data.
var sentinelNames = map[string]struct{}{
	"total":  {},
	"totals": {},
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxNameLength = 100

// Parse reads a delimited recipient list and splits it into valid records,
// invalid rows with reasons, and skipped footer rows. Row-level problems
// never abort the parse; only a malformed file or unmatchable headers do.
func Parse(raw string, contact Contact) (*ParseResult, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("recipient list is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("parse recipient list: %w", err)
	}

	cols, err := matchHeaders(headers, contact)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Valid: []Record{}, Invalid: []InvalidRow{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse recipient list: %w", err)
		}
		// physical line in the uploaded file; the reader drops blank
		// separator lines but they still advance this
		fileRow, _ := reader.FieldPos(0)
		result.Stats.TotalDataRows++

		first, last := extractName(row, cols)
		if first == "" && last == "" {
			result.Stats.Skipped++
			continue
		}
		if _, sentinel := sentinelNames[strings.ToLower(first)]; sentinel && last == "" {
			result.Stats.Skipped++
			continue
		}

		if first == "" || last == "" {
			result.Invalid = append(result.Invalid, InvalidRow{Row: fileRow, Reason: "Missing first or last name"})
			continue
		}
		if len(first) > maxNameLength || len(last) > maxNameLength {
			result.Invalid = append(result.Invalid, InvalidRow{Row: fileRow, Reason: "Name exceeds 100 characters"})
			continue
		}

		rec := Record{FirstName: first, LastName: last, Row: fileRow}
		switch contact {
		case ContactPhone:
			rawPhone := cell(row, cols, "phone")
			if rawPhone == "" {
				result.Invalid = append(result.Invalid, InvalidRow{Row: fileRow, Reason: "Missing phone number"})
				continue
			}
			phone, err := NormalizePhone(rawPhone)
			if err != nil {
				result.Invalid = append(result.Invalid, InvalidRow{Row: fileRow, Reason: "Invalid phone number format"})
				continue
			}
			rec.Phone = phone
		case ContactEmail:
			email := cell(row, cols, "email")
			if email == "" {
				result.Invalid = append(result.Invalid, InvalidRow{Row: fileRow, Reason: "Missing email address"})
				continue
			}
			if !emailPattern.MatchString(email) {
				result.Invalid = append(result.Invalid, InvalidRow{Row: fileRow, Reason: "Invalid email address"})
				continue
			}
			rec.Email = strings.ToLower(email)
		}

		result.Valid = append(result.Valid, rec)
	}

	return result, nil
}

// matchHeaders resolves logical fields to column indexes. The name can come
// from a combined column or a first/last pair; the contact column for the
// requested channel is required.
func matchHeaders(headers []string, contact Contact) (map[string]int, error) {
	cols := map[string]int{}
	for idx, h := range headers {
		normalized := strings.ToLower(strings.TrimSpace(h))
		for field, synonyms := range headerSynonyms {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, syn := range synonyms {
				if normalized == syn {
					cols[field] = idx
					break
				}
			}
		}
	}

	var missing []string
	_, hasFirst := cols["firstName"]
	_, hasLast := cols["lastName"]
	_, hasCombined := cols["name"]
	if !(hasFirst && hasLast) && !hasCombined {
		missing = append(missing, "name")
	}
	if _, ok := cols[string(contact)]; !ok {
		missing = append(missing, string(contact))
	}
	if len(missing) > 0 {
		found := make([]string, len(headers))
		for i, h := range headers {
			found[i] = strings.TrimSpace(h)
		}
		return nil, &MissingColumnsError{Missing: missing, Found: found}
	}
	return cols, nil
}

func extractName(row []string, cols map[string]int) (string, string) {
	firstIdx, hasFirst := cols["firstName"]
	lastIdx, hasLast := cols["lastName"]
	if hasFirst && hasLast {
		return strings.TrimSpace(valueAt(row, firstIdx)), strings.TrimSpace(valueAt(row, lastIdx))
	}

	full := strings.Fields(cell(row, cols, "name"))
	if len(full) == 0 {
		return "", ""
	}
	if len(full) == 1 {
		return full[0], ""
	}
	return full[0], strings.Join(full[1:], " ")
}

func cell(row []string, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok {
		return ""
	}
	return strings.TrimSpace(valueAt(row, idx))
}

func valueAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
