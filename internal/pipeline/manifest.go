package pipeline

import (
	"fmt"
	"time"

	"github.com/KaramelBytes/haruspex-cli/internal/utils"
	"github.com/google/uuid"
)

// Manifest records what one run read and wrote.
type Manifest struct {
	ID         string    `yaml:"id"`
	CreatedAt  time.Time `yaml:"created_at"`
	Engine     string    `yaml:"engine"`
	Arity      string    `yaml:"arity"`
	InputData  string    `yaml:"input_data"`
	InputModel string    `yaml:"input_model,omitempty"`
	Rows       int       `yaml:"rows"`
	Columns    int       `yaml:"columns"`
	Requests   []string  `yaml:"requests"`
	OutputData string    `yaml:"output_data"`
	Model      []string  `yaml:"model"`
	Warnings   []string  `yaml:"warnings,omitempty"`
}

func newManifest() *Manifest {
	return &Manifest{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(path string) error {
	data, err := utils.PrettyYAML(m)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
