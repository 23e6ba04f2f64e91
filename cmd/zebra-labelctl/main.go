package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"zebra-label/internal/config"
	"zebra-label/internal/job"
	"zebra-label/internal/label"
	"zebra-label/internal/logging"
	"zebra-label/internal/printer"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	app := cli.NewApp()

	app.Name = "zebra-labelctl"
	app.Usage = "Encode and print product labels on Zebra mobile printers"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to zebra-label.yaml"},
		cli.StringFlag{Name: "transport, t", Usage: "override the configured transport (bluetooth / usb / serial)"},
		cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "give up after this long"},
	}

	labelFlags := []cli.Flag{
		cli.StringFlag{Name: "size, s", Value: label.TwoByOne.String(), Usage: "label size (2x1 / 3x2)"},
		cli.IntFlag{Name: "copies, n", Value: 1, Usage: "number of copies"},
		cli.StringFlag{Name: "barcode", Usage: "Code 39 barcode data"},
		cli.StringFlag{Name: "type", Usage: "product type"},
		cli.StringFlag{Name: "name", Usage: "product name"},
		cli.StringFlag{Name: "unit", Usage: "unit of measure"},
		cli.StringFlag{Name: "price", Usage: "formatted price"},
	}

	app.Commands = []cli.Command{
		{
			Name:    "accessories",
			Aliases: []string{"ls"},
			Usage:   "List attached accessories and whether they take raw printer data",
			Action:  accessories,
		},
		{
			Name:   "detect",
			Usage:  "Connect to the printer and report its control language",
			Action: detect,
		},
		{
			Name:   "encode",
			Usage:  "Write the label command stream to stdout without printing",
			Action: encode,
			Flags: append([]cli.Flag{
				cli.StringFlag{Name: "lang, l", Value: label.ZPL.String(), Usage: "printer language (ZPL / CPCL)"},
				cli.BoolFlag{Name: "sample", Usage: "use the sample record"},
			}, labelFlags...),
		},
		{
			Name:    "print",
			Aliases: []string{"p"},
			Usage:   "Print a label",
			Action:  printLabel,
			Flags:   labelFlags,
		},
		{
			Name:   "sample",
			Usage:  "Print the sample label",
			Action: sample,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "size, s", Value: label.TwoByOne.String(), Usage: "label size (2x1 / 3x2)"},
				cli.IntFlag{Name: "copies, n", Value: 1, Usage: "number of copies"},
			},
		},
	}

	app.Before = setup
	app.After = func(c *cli.Context) error {
		if logger != nil {
			logger.Sync()
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	var err error
	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if t := c.String("transport"); t != "" {
		cfg.Transport = t
	}

	logger, err = logging.New(cfg.Log)
	return errors.Wrap(err, "can't create logger")
}

func withTimeout(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, c.GlobalDuration("timeout"))
	return ctx, func() {
		cancel()
		stop()
	}
}

func accessories(c *cli.Context) error {
	transport, err := cfg.NewTransport(logger)
	if err != nil {
		return err
	}

	list, err := transport.Accessories()
	if err != nil {
		return errors.Wrap(err, "can't list accessories")
	}
	if len(list) == 0 {
		fmt.Println("No accessories attached")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tTRANSPORT\tRAW PORT")
	for _, acc := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", acc.Name, acc.Address, acc.Transport, acc.Supports(cfg.Protocol))
	}
	return w.Flush()
}

// connect returns a manager with an open link, or an error
func connect(ctx context.Context) (*printer.Manager, error) {
	transport, err := cfg.NewTransport(logger)
	if err != nil {
		return nil, err
	}

	mgr := printer.NewManager(transport, cfg.ManagerOptions(logger))
	acc, err := mgr.Discover()
	if err != nil {
		return nil, errors.Wrap(err, "can't find printer")
	}
	fmt.Printf("Connecting to %s ...\n", acc)
	if err := mgr.Open(ctx, acc); err != nil {
		return nil, err
	}
	return mgr, nil
}

func detect(c *cli.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	mgr, err := connect(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()

	lang, err := printer.NewDetector(logger).Detect(ctx, mgr)
	if err != nil {
		return err
	}
	fmt.Printf("%s speaks %s\n", mgr.Accessory(), lang)
	return nil
}

func record(c *cli.Context) label.Record {
	return label.Record{
		Barcode:        c.String("barcode"),
		ProductType:    c.String("type"),
		ProductName:    c.String("name"),
		UnitOfMeasure:  c.String("unit"),
		FormattedPrice: c.String("price"),
	}
}

func encode(c *cli.Context) error {
	size, err := label.ParseSize(c.String("size"))
	if err != nil {
		return err
	}
	lang, err := label.ParseLanguage(c.String("lang"))
	if err != nil {
		return err
	}

	rec := record(c)
	if c.Bool("sample") {
		rec = label.SampleRecord
	}

	data, err := label.NewEncoder(cfg.Label).Encode(rec, size, lang, c.Int("copies"))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func printLabel(c *cli.Context) error {
	return run(c, record(c))
}

func sample(c *cli.Context) error {
	return run(c, label.SampleRecord)
}

// run submits one job and waits for its outcome
func run(c *cli.Context, rec label.Record) error {
	size, err := label.ParseSize(c.String("size"))
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	transport, err := cfg.NewTransport(logger)
	if err != nil {
		return err
	}
	mgr := printer.NewManager(transport, cfg.ManagerOptions(logger))
	defer mgr.Close()

	orch := job.NewOrchestrator(mgr, printer.NewDetector(logger), label.NewEncoder(cfg.Label), job.Options{
		Policy: cfg.DetectPolicy,
		Logger: logger,
	})

	done := make(chan error, 1)
	j := job.New(rec, size, c.Int("copies"))
	err = orch.SubmitContext(ctx, j, job.ListenerFuncs{
		Success: func(j job.Job) { done <- nil },
		Failure: func(_ job.Job, f *job.Failure) { done <- f },
	})
	if err != nil {
		return err
	}

	if err := <-done; err != nil {
		return err
	}
	fmt.Printf("Printed %d %s label(s) on %s (job %s)\n", j.Copies, j.Size, mgr.Accessory(), j.ID)
	return nil
}
