package submit

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()

	hintBox     = lipgloss.NewStyle().Padding(1, 0, 1, 4)
	hintCommand = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Background(lipgloss.Color("0"))
)

func hint() string {
	return hintBox.Render(
		"All tasks of the chapter can be submitted with:\n" +
			hintCommand.Render("apyneng -c") + "\n\n" +
			"Do not forget to read the review comments afterwards.",
	)
}
