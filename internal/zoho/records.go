package zoho

import "strings"

// metadataMarker prefixes Zoho system fields such as $approval or $editable.
const metadataMarker = "$"

// Document is a decoded CRM response, passed through as Zoho shaped it.
type Document map[string]any

// Record is a single entry of a Document's data array.
type Record map[string]any

type ModuleInfo struct {
	APIName       string `json:"api_name"`
	ModuleName    string `json:"module_name"`
	PluralLabel   string `json:"plural_label"`
	SingularLabel string `json:"singular_label"`
}

// Records returns the entries of the data array. Entries that are not JSON
// objects are skipped.
func (d Document) Records() []Record {
	raw, _ := d["data"].([]any)
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records
}

// First returns the first record or ErrNoRecords.
func (d Document) First() (Record, error) {
	records := d.Records()
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records[0], nil
}

// StripMetadata drops top-level keys starting with "$". Nested values are
// left alone.
func StripMetadata(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if strings.HasPrefix(k, metadataMarker) {
			continue
		}
		out[k] = v
	}
	return out
}

func StripAll(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, StripMetadata(r))
	}
	return out
}

// ProjectModules reduces the modules array of a settings/modules response to
// the identifying labels, keeping the order Zoho returned.
func ProjectModules(d Document) []ModuleInfo {
	raw, _ := d["modules"].([]any)
	modules := make([]ModuleInfo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		modules = append(modules, ModuleInfo{
			APIName:       stringField(m, "api_name"),
			ModuleName:    stringField(m, "module_name"),
			PluralLabel:   stringField(m, "plural_label"),
			SingularLabel: stringField(m, "singular_label"),
		})
	}
	return modules
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
