// Package watch follows a day and reprints it whenever it changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/metrics"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/tasklist"
	"tableflip.dev/daylog/pkg/timeutil"
)

const clearScreen = "\033[H\033[2J"

// Watch prints Day, then every change to it until the context ends. When
// MetricsAddr is set the sync counters are served there.
type Watch struct {
	Day         timeutil.Day
	ShowID      bool
	MetricsAddr string
	Service     *app.Service
}

func (n *Watch) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not watch, no service")
	}
	g, ctx := errgroup.WithContext(ctx)

	if n.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              n.MetricsAddr,
			Handler:           metricsMux(n.Service),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	interactive := printers.Interactive(os.Stdout)
	pp := printers.PrettyPrint{ShowID: n.ShowID}
	render := func(ch *tasklist.Change, tasks []task.Task) {
		if interactive {
			_, _ = fmt.Fprint(color.Output, clearScreen)
		}
		if ch != nil {
			_, _ = color.New(color.Faint).Fprintf(color.Output, "%s %s\n", time.Now().Format("15:04:05"), ch)
		}
		pp.Day(n.Day, tasks)
	}
	render(nil, n.Service.Day(ctx, n.Day))

	g.Go(func() error {
		return n.Service.Watch(ctx, n.Day, func(ch tasklist.Change, tasks []task.Task) {
			if ch.Day != n.Day && ch.Kind != tasklist.ChangeDayChanged {
				return
			}
			render(&ch, tasks)
		})
	})
	return g.Wait()
}

func metricsMux(s *app.Service) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(s.Registry))
	return mux
}
