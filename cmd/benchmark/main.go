package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"github.com/watchparty/observe"
	"go.uber.org/zap"
)

const itersKey = "iters"

func main() {
	itersFlag := func() cli.Flag {
		return &cli.UintFlag{
			Name:  itersKey,
			Usage: "Iterations per configuration",
			Value: 100,
		}
	}
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure the observe engine",
		Commands: []*cli.Command{
			{
				Name:   "propagate",
				Usage:  "Chained observers relaying a single write",
				Flags:  []cli.Flag{itersFlag()},
				Action: runPropagate,
			},
			{
				Name:   "churn",
				Usage:  "Container mutation workloads",
				Flags:  []cli.Flag{itersFlag()},
				Action: runChurn,
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	ww = []int{1, 10, 100}
	hh = []int{1, 10, 100}
)

func newSystem(maxPasses int) *observe.System {
	s := observe.CreateSystem(func(from *observe.Observer, err error) {
		log.Panic(err)
	})
	s.SetMaxPasses(maxPasses)
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	s.SetLogger(logger)
	return s
}

func runPropagate(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))

	tbl := table.NewWriter()
	tbl.SetTitle("Propagate")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			// each chain relays a write through h observers, one flush
			// pass per hop
			s := newSystem(h + 10)
			src := observe.Ref(s, 1)
			for i := 0; i < w; i++ {
				prev := src
				for j := 0; j < h; j++ {
					next := observe.Ref(s, 0)
					hop := prev
					s.Observe(func() (any, error) {
						return hop.Value(), nil
					}, func(_, newValue any) error {
						next.SetValue(newValue.(int) + 1)
						return nil
					})
					prev = next
				}
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.SetValue(src.Value() + 1)
				s.DeliverChangesSync()
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("relay: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	tbl.Render()
	return nil
}

func runChurn(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"workload", "ops", "time", "ops/sec"})

	for _, keySpace := range []int{16, 256, 4096} {
		ops := iters * keySpace

		elapsed := churnMap(keySpace, ops)
		appendChurnRow(tbl, fmt.Sprintf("map %d keys", keySpace), ops, elapsed)

		elapsed = churnList(keySpace, ops)
		appendChurnRow(tbl, fmt.Sprintf("list %d slots", keySpace), ops, elapsed)

		elapsed = churnSet(keySpace, ops)
		appendChurnRow(tbl, fmt.Sprintf("set %d members", keySpace), ops, elapsed)
	}

	tbl.Render()
	return nil
}

func appendChurnRow(tbl *tablewriter.Table, workload string, ops int, elapsed time.Duration) {
	rate := float64(ops) / elapsed.Seconds()
	tbl.Append([]string{
		workload,
		humanize.Comma(int64(ops)),
		fmt.Sprint(elapsed),
		humanize.Comma(int64(rate)),
	})
}

// churnKey spreads sequential op indexes across the key space the same way
// for every workload.
func churnKey(i, keySpace int) string {
	n := xxhash.Sum64String(strconv.Itoa(i)) % uint64(keySpace)
	return "k" + strconv.FormatUint(n, 10)
}

func churnMap(keySpace, ops int) time.Duration {
	s := newSystem(observe.DefaultMaxPasses)
	m := observe.MapOf[string, int](s, nil)
	for i := 0; i < keySpace; i++ {
		key := churnKey(i, keySpace)
		s.Observe(func() (any, error) {
			v, _ := m.Get(key)
			return v, nil
		}, func(_, _ any) error { return nil })
		m.Set(key, 0)
	}
	s.DeliverChangesSync()

	start := time.Now()
	for i := 0; i < ops; i++ {
		m.Set(churnKey(i, keySpace), i)
		if i%keySpace == 0 {
			s.DeliverChangesSync()
		}
	}
	s.DeliverChangesSync()
	return time.Since(start)
}

func churnList(keySpace, ops int) time.Duration {
	s := newSystem(observe.DefaultMaxPasses)
	l := observe.ListOf(s, make([]int, keySpace)...)
	for i := 0; i < keySpace; i++ {
		slot := i
		s.Observe(func() (any, error) {
			return l.At(slot), nil
		}, func(_, _ any) error { return nil })
	}

	start := time.Now()
	for i := 0; i < ops; i++ {
		l.SetAt(i%keySpace, i)
		if i%keySpace == 0 {
			s.DeliverChangesSync()
		}
	}
	s.DeliverChangesSync()
	return time.Since(start)
}

func churnSet(keySpace, ops int) time.Duration {
	s := newSystem(observe.DefaultMaxPasses)
	set := observe.SetOf[string](s)
	for i := 0; i < keySpace; i++ {
		member := churnKey(i, keySpace)
		s.Observe(func() (any, error) {
			return set.Contains(member), nil
		}, func(_, _ any) error { return nil })
	}

	start := time.Now()
	for i := 0; i < ops; i++ {
		member := churnKey(i, keySpace)
		if i%2 == 0 {
			set.Add(member)
		} else {
			set.Remove(member)
		}
		if i%keySpace == 0 {
			s.DeliverChangesSync()
		}
	}
	s.DeliverChangesSync()
	return time.Since(start)
}
