package ruleset

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ManifestFile names the optional per-version metadata document.
const ManifestFile = "manifest.yaml"

// Manifest records how a ruleset version was produced. It lives inside the
// version directory and is immutable along with it.
type Manifest struct {
	CreatedAt      time.Time `yaml:"created_at"`
	CreatedBy      string    `yaml:"created_by,omitempty"`
	Notes          string    `yaml:"notes,omitempty"`
	SerialRules    int       `yaml:"serial_rules"`
	AttributeRules int       `yaml:"attribute_rules"`
	Brands         []string  `yaml:"brands,omitempty"`
}

// ReadManifest loads the manifest from a ruleset directory. A missing
// manifest is not an error; older versions predate the format.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: read manifest in %s", dir)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "ruleset: parse manifest in %s", dir)
	}
	return &m, nil
}

// WriteManifest writes the manifest into a ruleset directory. Intended for
// use while the version is being assembled, before it is promoted.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "ruleset: marshal manifest")
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return eris.Wrapf(err, "ruleset: write manifest in %s", dir)
	}
	return nil
}
