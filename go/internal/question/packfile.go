package question

import (
	"fmt"
	"os"

	"github.com/suslab/spyroom/go/internal/models"
	"gopkg.in/yaml.v3"
)

// packFile is the YAML shape of a custom question pack.
type packFile struct {
	Questions []packQuestion `yaml:"questions"`
}

type packQuestion struct {
	ID             string `yaml:"id"`
	Text           string `yaml:"text"`
	Type           string `yaml:"type"`
	FamilyFriendly *bool  `yaml:"family_friendly"`
}

// LoadPack reads a YAML question pack. Family-friendliness defaults to
// true when a question omits it.
func LoadPack(path string) ([]models.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question pack: %w", err)
	}

	var pack packFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse question pack: %w", err)
	}
	if len(pack.Questions) == 0 {
		return nil, fmt.Errorf("question pack %s has no questions", path)
	}

	out := make([]models.Question, 0, len(pack.Questions))
	seen := make(map[string]bool, len(pack.Questions))
	for i, q := range pack.Questions {
		if q.ID == "" || q.Text == "" {
			return nil, fmt.Errorf("question %d in %s is missing id or text", i, path)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %q in %s", q.ID, path)
		}
		seen[q.ID] = true

		var qt models.QuestionType
		switch q.Type {
		case string(models.QuestionYesNo), "":
			qt = models.QuestionYesNo
		case string(models.QuestionScale4):
			qt = models.QuestionScale4
		case string(models.QuestionPlayers):
			qt = models.QuestionPlayers
		default:
			return nil, fmt.Errorf("question %q in %s has unknown type %q", q.ID, path, q.Type)
		}

		ff := true
		if q.FamilyFriendly != nil {
			ff = *q.FamilyFriendly
		}
		out = append(out, models.Question{
			ID:             q.ID,
			Text:           q.Text,
			Type:           qt,
			FamilyFriendly: ff,
		})
	}
	return out, nil
}
