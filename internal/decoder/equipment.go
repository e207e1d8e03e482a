package decoder

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nameplate-cli/internal/fetcher"
	"github.com/sells-group/nameplate-cli/internal/normalize"
)

// LoadEquipmentTypes reads the equipment-type vocabulary into a map of
// normalized description to canonical description. The file is a lookup
// vocabulary, never a join table; a missing file is an empty vocabulary.
func LoadEquipmentTypes(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	records, err := fetcher.ReadRecords(path)
	if err != nil {
		return nil, eris.Wrap(err, "decoder: load equipment types")
	}

	out := make(map[string]string, len(records))
	for _, rec := range records {
		var raw string
		for _, col := range []string{"Asset_Description", "EquipmentType", "Equipment", "Type", "description"} {
			if rec[col] != "" {
				raw = rec[col]
				break
			}
		}
		norm := normalize.Text(raw)
		if norm == "" {
			continue
		}
		out[norm] = raw
	}
	return out, nil
}

// CanonicalEquipmentType normalizes an equipment-type string and resolves it
// through the vocabulary; an unrecognized value passes through normalized.
func CanonicalEquipmentType(raw string, vocab map[string]string) string {
	norm := normalize.Text(raw)
	if norm == "" {
		return ""
	}
	if canonical, ok := vocab[norm]; ok {
		return canonical
	}
	return norm
}
