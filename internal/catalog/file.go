// Package catalog holds the program and exercise catalog: the YAML seed
// file format and a cache in front of the catalog the engine reads from.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is a catalog seed file.
type File struct {
	MuscleGroups []MuscleGroup `yaml:"muscle_groups"`
	Exercises    []Exercise    `yaml:"exercises"`
	Programs     []Program     `yaml:"programs"`
}

// MuscleGroup is a muscle group exercises are tagged with.
type MuscleGroup struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Exercise is a catalog exercise with its default targets.
type Exercise struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	TargetSets   *int    `yaml:"target_sets"`
	TargetReps   *string `yaml:"target_reps"`
	RestSeconds  *int    `yaml:"rest_seconds"`
	VideoURL     *string `yaml:"video_url"`
	ThumbnailURL *string `yaml:"thumbnail_url"`
	MuscleGroup  *string `yaml:"muscle_group"`
}

// Program is a training program made of days.
type Program struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Days []Day  `yaml:"days"`
}

// Day is one program day. Exercises are listed in plan order.
type Day struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	Week      int           `yaml:"week"`
	Exercises []DayExercise `yaml:"exercises"`
}

// DayExercise places an exercise in a day, optionally overriding its targets.
type DayExercise struct {
	Exercise    string  `yaml:"exercise"`
	TargetSets  *int    `yaml:"target_sets"`
	TargetReps  *string `yaml:"target_reps"`
	RestSeconds *int    `yaml:"rest_seconds"`
}

// Load reads and validates a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &f, nil
}

func (f *File) validate() error {
	groups := make(map[string]bool, len(f.MuscleGroups))
	for _, g := range f.MuscleGroups {
		if g.ID == "" {
			return fmt.Errorf("muscle group without id")
		}
		if groups[g.ID] {
			return fmt.Errorf("duplicate muscle group %q", g.ID)
		}
		groups[g.ID] = true
	}

	exercises := make(map[string]bool, len(f.Exercises))
	for _, e := range f.Exercises {
		if e.ID == "" || e.Name == "" {
			return fmt.Errorf("exercise needs id and name (id %q)", e.ID)
		}
		if exercises[e.ID] {
			return fmt.Errorf("duplicate exercise %q", e.ID)
		}
		if e.MuscleGroup != nil && !groups[*e.MuscleGroup] {
			return fmt.Errorf("exercise %q: unknown muscle group %q", e.ID, *e.MuscleGroup)
		}
		exercises[e.ID] = true
	}

	days := make(map[string]bool)
	programs := make(map[string]bool, len(f.Programs))
	for _, p := range f.Programs {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("program needs id and name (id %q)", p.ID)
		}
		if programs[p.ID] {
			return fmt.Errorf("duplicate program %q", p.ID)
		}
		programs[p.ID] = true
		for _, d := range p.Days {
			if d.ID == "" || d.Title == "" {
				return fmt.Errorf("program %q: day needs id and title (id %q)", p.ID, d.ID)
			}
			if days[d.ID] {
				return fmt.Errorf("duplicate day %q", d.ID)
			}
			days[d.ID] = true
			for i, de := range d.Exercises {
				if !exercises[de.Exercise] {
					return fmt.Errorf("day %q position %d: unknown exercise %q", d.ID, i, de.Exercise)
				}
			}
		}
	}
	return nil
}
