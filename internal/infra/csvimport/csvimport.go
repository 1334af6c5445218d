// Package csvimport reads stakeholder spreadsheets exported as CSV with the
// columns name, email, designation, location, businessUnit and Reportsto
// (the manager's name). Rows without an email get one generated from the
// name.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Record is one parsed row with the manager resolved to an email.
type Record struct {
	Line         int
	Name         string
	Email        string
	Designation  string
	Location     string
	BusinessUnit []string
	ManagerEmail string
}

var nonLetters = regexp.MustCompile(`[^a-zA-Z ]`)

// GenerateEmail builds an address from a person's name: first@domain,
// first.last@domain, or first.m.last@domain when there are middle names.
// Returns "" when the name has no letters.
func GenerateEmail(name, domain string) string {
	cleaned := strings.ToLower(strings.TrimSpace(nonLetters.ReplaceAllString(name, "")))
	parts := strings.Fields(cleaned)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0] + "@" + domain
	case 2:
		return parts[0] + "." + parts[1] + "@" + domain
	default:
		return parts[0] + "." + parts[1][:1] + "." + parts[len(parts)-1] + "@" + domain
	}
}

// Parse reads every row of r. The manager column is matched by name against
// the other rows, case-insensitively; unknown managers are left empty.
func Parse(r io.Reader, emailDomain string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("csv header has no 'name' column")
	}
	get := func(row []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		records  []Record
		managers []string
		byName   = map[string]string{}
	)
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		rec := Record{
			Line:        line,
			Name:        get(row, "name"),
			Designation: get(row, "designation"),
			Location:    get(row, "location"),
		}
		if email := strings.ToLower(get(row, "email")); strings.Contains(email, "@") {
			rec.Email = email
		} else {
			rec.Email = GenerateEmail(rec.Name, emailDomain)
		}
		if bu := get(row, "businessunit"); bu != "" {
			for _, b := range strings.Split(bu, ",") {
				if b = strings.TrimSpace(b); b != "" {
					rec.BusinessUnit = append(rec.BusinessUnit, b)
				}
			}
		}
		if rec.Name != "" && rec.Email != "" {
			byName[strings.ToLower(rec.Name)] = rec.Email
		}
		records = append(records, rec)
		managers = append(managers, strings.ToLower(get(row, "reportsto")))
	}

	for i := range records {
		if m := managers[i]; m != "" {
			records[i].ManagerEmail = byName[m]
		}
	}
	return records, nil
}
