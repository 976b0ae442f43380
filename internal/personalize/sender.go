package personalize

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

// LoadSenderProfile reads the sender profile YAML file.
func LoadSenderProfile(path string) (model.SenderProfile, error) {
	var profile model.SenderProfile

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, eris.Wrapf(err, "personalize: read sender profile %s", path)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, eris.Wrapf(err, "personalize: parse sender profile %s", path)
	}
	if profile.Name == "" {
		return profile, eris.Errorf("personalize: sender profile %s has no name", path)
	}
	return profile, nil
}
