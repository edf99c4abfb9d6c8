package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/desertthunder/rsc/internal/models"
)

var optionLabels = map[string]string{
	models.OptAllowExplicit:        "Allow explicit songs",
	models.OptAllowDuplicates:      "Allow duplicate songs",
	models.OptIncludePrivate:       "Include private playlists",
	models.OptIncludeCollaborative: "Include collaborative playlists",
	models.OptIncludeFollowed:      "Include playlists you follow",
	models.OptIncludeHoliday:       "Include Christmas playlists",
}

// OptionLabel is the human-readable description of an option key.
func OptionLabel(key string) string {
	if label, ok := optionLabels[key]; ok {
		return label
	}
	return key
}

// OptionsPrompt asks for the filter toggles and the playlist title.
type OptionsPrompt struct {
	choices  []huh.Option[string]
	selected []string
	title    string
}

// NewOptionsPrompt seeds the prompt with the current toggles and title.
func NewOptionsPrompt(opts models.FilterOptions, title string) *OptionsPrompt {
	p := &OptionsPrompt{title: title}
	for _, k := range models.OptionKeys() {
		on, _ := opts.Get(k)
		p.choices = append(p.choices, huh.NewOption(OptionLabel(k), k).Selected(on))
		if on {
			p.selected = append(p.selected, k)
		}
	}
	return p
}

// Form builds the huh form bound to the prompt's values.
func (p *OptionsPrompt) Form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Which songs and playlists should be included?").
				Options(p.choices...).
				Value(&p.selected),
			huh.NewInput().
				Title("Playlist title").
				Value(&p.title).
				Validate(validateTitle),
		),
	)
}

// Run shows the form on the terminal.
func (p *OptionsPrompt) Run() error {
	if err := p.Form().Run(); err != nil {
		return fmt.Errorf("options prompt: %w", err)
	}
	return nil
}

// Options returns the toggles chosen in the form.
func (p *OptionsPrompt) Options() models.FilterOptions {
	opts := models.DefaultFilterOptions()
	for _, k := range p.selected {
		opts.Set(k, true)
	}
	return opts
}

// Title returns the trimmed playlist title.
func (p *OptionsPrompt) Title() string {
	return strings.TrimSpace(p.title)
}

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	return nil
}
