package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/task"
)

// AddOptions
type AddOptions struct {
	Title     string
	At        string
	Subtitle  string
	Category  string
	Challenge bool
	Calories  int
}

func AddAddArgs(cmd *cobra.Command, o *AddOptions) {
	cmd.Flags().StringVar(&o.At, "at", "09:00",
		`Clock time of the task, example: --at="7:30".`)
	cmd.Flags().StringVarP(&o.Subtitle, "subtitle", "s", "",
		"A second line of detail.")
	cmd.Flags().StringVarP(&o.Category, "category", "c", string(task.CategoryGeneric),
		"One of generic, diet or fitness.")
	cmd.Flags().BoolVar(&o.Challenge, "challenge", false,
		"Mark the task as the daily challenge.")
	cmd.Flags().IntVar(&o.Calories, "kcal", 0,
		"Calories, recorded as a single diet item.")
}

// Clock parses --at into an hour and minute.
func (o *AddOptions) Clock() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(o.At))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --at %q, want HH:MM", o.At)
	}
	return t.Hour(), t.Minute(), nil
}

func (o *AddOptions) GetCategory() (task.Category, error) {
	return task.ParseCategory(o.Category)
}
