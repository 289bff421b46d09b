package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stage identifiers, in pipeline order.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
)

var stageOrder = []string{StageExtract, StageChunk, StageEmbed, StageStore}

// TemplateDefaults are the global fallback parameters a workspace row
// can override per field.
type TemplateDefaults struct {
	ChunkingMethod   string `yaml:"chunking_method"`
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	SimilarityMetric string `yaml:"similarity_metric"`
	TopK             int    `yaml:"top_k"`
	BatchSize        int    `yaml:"batch_size"`
	EmbeddingModel   string `yaml:"embedding_model"`
}

// StageSpec names one stage and where its output artifact goes. The
// artifact path may reference resolved parameters as ${var}.
type StageSpec struct {
	ID       string `yaml:"id"`
	Module   string `yaml:"module"`
	Artifact string `yaml:"artifact"`
}

type CleanupSpec struct {
	RemoveArtifacts bool `yaml:"remove_artifacts"`
}

// Template is the persisted pipeline description: stage order, default
// parameters and artifact locations.
type Template struct {
	Version  int              `yaml:"version"`
	Defaults TemplateDefaults `yaml:"defaults"`
	Stages   []StageSpec      `yaml:"stages"`
	Cleanup  CleanupSpec      `yaml:"cleanup"`
}

// DefaultTemplate is used when no template file is configured. Artifact
// paths land under ${artifact_dir}/${doc_id}/.
func DefaultTemplate() *Template {
	return &Template{
		Version: 1,
		Defaults: TemplateDefaults{
			ChunkingMethod:   "recursive",
			ChunkSize:        1000,
			ChunkOverlap:     100,
			SimilarityMetric: "cosine",
			TopK:             4,
			BatchSize:        16,
		},
		Stages: []StageSpec{
			{ID: StageExtract, Module: "pipeline/extract", Artifact: "${artifact_dir}/${doc_id}/extracted.json"},
			{ID: StageChunk, Module: "pipeline/chunk", Artifact: "${artifact_dir}/${doc_id}/chunks.json"},
			{ID: StageEmbed, Module: "pipeline/embed", Artifact: "${artifact_dir}/${doc_id}/vectors.json"},
			{ID: StageStore, Module: "pipeline/store", Artifact: ""},
		},
	}
}

// LoadTemplate reads a YAML template from path, or returns the built-in
// default when path is empty.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Template) validate() error {
	if len(t.Stages) == 0 {
		return fmt.Errorf("template has no stages")
	}
	seen := make(map[string]bool, len(t.Stages))
	for _, s := range t.Stages {
		ok := false
		for _, id := range stageOrder {
			if s.ID == id {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unknown stage id %q", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate stage id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Stage returns the spec for the given stage id, or nil.
func (t *Template) Stage(id string) *StageSpec {
	for i := range t.Stages {
		if t.Stages[i].ID == id {
			return &t.Stages[i]
		}
	}
	return nil
}

// ArtifactPath expands the stage's artifact location with the given
// variables.
func (t *Template) ArtifactPath(stageID string, vars map[string]string) string {
	s := t.Stage(stageID)
	if s == nil || s.Artifact == "" {
		return ""
	}
	return Substitute(s.Artifact, vars)
}

// Substitute replaces every ${name} occurrence with its value from
// vars. Unknown names expand to the empty string.
func Substitute(s string, vars map[string]string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.Index(s[i:], "}")
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(vars[s[i+2:i+j]])
		s = s[i+j+1:]
	}
}
