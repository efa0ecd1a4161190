// Package roster provides the static list of participants shown on the
// remotes. Participants are read-only for the session; the roster only
// feeds the participant picker and round counter keys.
package roster

import (
	"context"
	"fmt"
	"os"

	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Source is one place a roster can be read from
type Source interface {
	Participants(ctx context.Context) ([]models.Participant, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]models.Participant, error)

func (f SourceFunc) Participants(ctx context.Context) ([]models.Participant, error) {
	return f(ctx)
}

// Provider asks its sources in order and returns the first non-empty roster
type Provider struct {
	sources []Source
}

func NewProvider(sources ...Source) *Provider {
	return &Provider{sources: sources}
}

// Participants never fails: the built-in roster is the last resort
func (p *Provider) Participants(ctx context.Context) []models.Participant {
	for i, src := range p.sources {
		if src == nil {
			continue
		}
		participants, err := src.Participants(ctx)
		if err != nil {
			log.Warn().Err(err).Int("source", i).Msg("roster source failed, trying next")
			continue
		}
		if len(participants) > 0 {
			return participants
		}
	}
	return Builtin()
}

// File reads a YAML roster of the form
//
//	participants:
//	  - id: u_nina
//	    name: Nina
//	    role: standard
//	    color: pink
type File struct {
	Path string
}

type fileDocument struct {
	Participants []models.Participant `yaml:"participants"`
}

func (f File) Participants(ctx context.Context) ([]models.Participant, error) {
	if f.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a roster document and normalizes roles
func ParseYAML(data []byte) ([]models.Participant, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	seen := make(map[string]bool, len(doc.Participants))
	out := make([]models.Participant, 0, len(doc.Participants))
	for i, p := range doc.Participants {
		if p.ID == "" || p.DisplayName == "" {
			return nil, fmt.Errorf("participant %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("participant %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		p.Role = models.ParseParticipantRole(string(p.Role))
		out = append(out, p)
	}
	return out, nil
}

// Builtin is the household roster used when nothing else is configured
func Builtin() []models.Participant {
	return []models.Participant{
		{ID: "u_richard", DisplayName: "Richard", Role: models.ParticipantRoleAdmin, ColorTag: "blue"},
		{ID: "u_nina", DisplayName: "Nina", Role: models.ParticipantRoleStandard, ColorTag: "pink"},
		{ID: "u_ben", DisplayName: "Ben", Role: models.ParticipantRoleJunior, ColorTag: "green"},
		{ID: "u_lio", DisplayName: "Lio", Role: models.ParticipantRoleJunior, ColorTag: "yellow"},
		{ID: "u_jona", DisplayName: "Jona", Role: models.ParticipantRoleJunior, ColorTag: "purple"},
		{ID: "u_imad", DisplayName: "Imad", Role: models.ParticipantRoleStandard, ColorTag: "indigo"},
		{ID: "u_robert", DisplayName: "Robert", Role: models.ParticipantRoleStandard, ColorTag: "orange"},
	}
}
