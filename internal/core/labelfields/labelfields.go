// Package labelfields pulls batch number, expiry and manufacture date out of recognized label text
package labelfields

import (
	"regexp"
	"strings"
)

// Fields are the values printed on a product label; empty means not found
type Fields struct {
	BatchNo string `json:"batch_no"`
	Expiry  string `json:"expiry_date"`
	MfgDate string `json:"mfg_date"`
}

var (
	// 14/07/25 (DD/MM/YY) 12/04/26 (DD/MM/YY) 25-8902-0014
	structured = regexp.MustCompile(`(\d{2}/\d{2}/\d{2,4})\s*\([^)]+\)\s*(\d{2}/\d{2}/\d{2,4})\s*\([^)]+\)\s*(\d{2}-\d{4}-\d{4})`)

	batchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{2}-\d{4}-\d{4})`),
		regexp.MustCompile(`BATCH\s*NO\.?\s*[:\-]?\s*([A-Z0-9\-]+)`),
		regexp.MustCompile(`B\.?\s*NO\.?\s*[:\-]?\s*([A-Z0-9\-]+)`),
	}

	date = regexp.MustCompile(`\d{2}/\d{2}/\d{2,4}`)
)

// Parse extracts label fields from text
// with two or more dates the first is the manufacture date and the second the expiry;
// a lone date is taken as the expiry
func Parse(text string) Fields {
	var f Fields
	s := strings.ToUpper(strings.ReplaceAll(text, "\n", " "))
	if s == "" {
		return f
	}

	if m := structured.FindStringSubmatch(s); m != nil {
		return Fields{MfgDate: m[1], Expiry: m[2], BatchNo: m[3]}
	}

	for _, re := range batchPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			f.BatchNo = strings.TrimSpace(m[1])
			break
		}
	}

	switch dates := date.FindAllString(s, -1); {
	case len(dates) >= 2:
		f.MfgDate, f.Expiry = dates[0], dates[1]
	case len(dates) == 1:
		f.Expiry = dates[0]
	}
	return f
}

// Found reports how many of the three fields were filled
func (f Fields) Found() int {
	n := 0
	for _, v := range []string{f.BatchNo, f.Expiry, f.MfgDate} {
		if v != "" {
			n++
		}
	}
	return n
}
