// Package key prints the legend for the marks and badges in task listings.
package key

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/daylog/pkg/task"
)

// Key prints a legend of marks, then one of badges.
type Key struct{}

func (k *Key) Do(ctx context.Context) error {
	_, _ = fmt.Fprintln(color.Output, "")

	k.Key(ctx, "Marks", [][2]string{
		{"[ ]", "open"},
		{color.GreenString("[x]"), "completed"},
	})
	_, _ = fmt.Fprintln(color.Output, "")

	badges := make([][2]string, 0, 8)
	for _, c := range task.AllCategories() {
		if c == task.CategoryGeneric {
			continue
		}
		badges = append(badges, [2]string{string(c), fmt.Sprintf("%s task", c)})
	}
	badges = append(badges,
		[2]string{"challenge", "daily challenge, listed last"},
		[2]string{"generated", "created by generate, replaced on the next run"},
		[2]string{"kcal", "calories of the task's diet items"},
	)
	k.Key(ctx, "Badges", badges)

	_, _ = fmt.Fprintln(color.Output, "")
	return nil
}

// Key renders one legend table.
func (k *Key) Key(_ context.Context, heading string, rows [][2]string) {
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint(heading), bold.Sprint("Meaning"))
	for _, r := range rows {
		tbl.AddRow(r[0], r[1])
	}
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(color.Output, tbl)
}
