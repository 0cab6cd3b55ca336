package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/tether/pkg/models"
)

// pickModel asks the user to choose a model, starting on current.
func pickModel(reg *models.Registry, current string) (string, error) {
	options := make([]huh.Option[string], 0, len(reg.List()))
	for _, m := range reg.List() {
		options = append(options, huh.NewOption(modelLabel(m), m.ID))
	}

	choice := current
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Choose a model").
			Options(options...).
			Value(&choice),
	)).Run()
	if err != nil {
		return "", err
	}

	return choice, nil
}

func modelLabel(m models.Model) string {
	label := m.ID
	if m.Name != "" {
		label = fmt.Sprintf("%s (%s)", m.Name, m.ID)
	}
	if m.Description != "" {
		label += " - " + m.Description
	}
	if m.Recommended {
		label += " [recommended]"
	}
	return label
}
