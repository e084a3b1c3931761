// Command dicomweb is a command line client for QIDO-RS, WADO-RS and STOW-RS
// services.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/otcheredev/dicomweb-bridge/pkg/client"
	"github.com/otcheredev/dicomweb-bridge/pkg/dicomjson"
	"github.com/otcheredev/dicomweb-bridge/pkg/logger"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
)

const usage = `usage: dicomweb [flags] <command> [args]

commands:
  studies                          search studies
  series <study>                   search series of a study
  instances <study> <series>       search instances of a series
  retrieve <study> <series> <sop>  download one instance
  metadata <study> <series> <sop>  print the metadata of one instance
  store <file>...                  upload Part 10 files

flags:
`

type options struct {
	url         string
	qido        string
	wado        string
	stow        string
	token       string
	patientName string
	patientID   string
	studyDate   string
	modality    string
	limit       int
	offset      int
	out         string
	timeout     time.Duration
	logLevel    string
}

func main() {
	fs := flag.NewFlagSet("dicomweb", flag.ExitOnError)
	var o options
	fs.StringVar(&o.url, "url", os.Getenv("DICOMWEB_URL"), "base URL of the DICOMweb service")
	fs.StringVar(&o.qido, "qido-prefix", "", "path prefix of QIDO-RS endpoints")
	fs.StringVar(&o.wado, "wado-prefix", "", "path prefix of WADO-RS endpoints")
	fs.StringVar(&o.stow, "stow-prefix", "", "path prefix of STOW-RS endpoints")
	fs.StringVar(&o.token, "token", os.Getenv("DICOMWEB_TOKEN"), "bearer token")
	fs.StringVar(&o.patientName, "patient-name", "", "match PatientName, wildcards allowed")
	fs.StringVar(&o.patientID, "patient-id", "", "match PatientID")
	fs.StringVar(&o.studyDate, "study-date", "", "match StudyDate, YYYYMMDD or a range")
	fs.StringVar(&o.modality, "modality", "", "match Modality")
	fs.IntVar(&o.limit, "limit", 0, "maximum number of results")
	fs.IntVar(&o.offset, "offset", 0, "number of results to skip")
	fs.StringVar(&o.out, "out", "", "output file for retrieve, defaults to <sop>.dcm")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "request timeout")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	logger.Init(o.logLevel, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, fs.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			os.Exit(2)
		}
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, o options, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if o.url == "" {
		return fmt.Errorf("-url is required")
	}

	opts := []client.Option{
		client.WithQIDOPrefix(o.qido),
		client.WithWADOPrefix(o.wado),
		client.WithSTOWPrefix(o.stow),
		client.WithTransport(client.NewHTTPTransport(o.timeout)),
	}
	if o.token != "" {
		opts = append(opts, client.WithBearerToken(o.token))
	}
	c, err := client.New(o.url, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	cmd, args := args[0], args[1:]
	switch {
	case cmd == "studies" && len(args) == 0:
		return search(ctx, o, c.SearchStudies(), stdout)
	case cmd == "series" && len(args) == 1:
		return search(ctx, o, c.SearchSeries(args[0]), stdout)
	case cmd == "instances" && len(args) == 2:
		return search(ctx, o, c.SearchInstances(args[0], args[1]), stdout)
	case cmd == "retrieve" && len(args) == 3:
		return retrieve(ctx, o, c, args[0], args[1], args[2], stdout)
	case cmd == "metadata" && len(args) == 3:
		datasets, err := c.RetrieveInstanceMetadata(args[0], args[1], args[2]).Datasets(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, datasets)
	case cmd == "store" && len(args) > 0:
		return store(ctx, c, args, stdout)
	default:
		return errUsage
	}
}

func search(ctx context.Context, o options, q *client.Query, stdout io.Writer) error {
	if o.patientName != "" {
		q.PatientName(o.patientName)
	}
	if o.patientID != "" {
		q.PatientID(o.patientID)
	}
	if o.studyDate != "" {
		q.StudyDate(o.studyDate)
	}
	if o.modality != "" {
		q.Modality(o.modality)
	}
	if o.limit > 0 {
		q.Limit(o.limit)
	}
	if o.offset > 0 {
		q.Offset(o.offset)
	}

	datasets, err := q.Datasets(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, datasets)
}

func retrieve(ctx context.Context, o options, c *client.Client, study, series, sop string, stdout io.Writer) error {
	ds, err := c.RetrieveInstance(study, series, sop).Instance(ctx)
	if err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("instance %s not found", sop)
	}

	out := o.out
	if out == "" {
		out = sop + ".dcm"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := part10.Write(f, *ds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintln(stdout, out)
	return nil
}

func store(ctx context.Context, c *client.Client, files []string, stdout io.Writer) error {
	parts := make([][]byte, 0, len(files))
	for _, name := range files {
		b, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		parts = append(parts, b)
	}

	resp, err := c.StoreInstances().StoreRaw(ctx, parts...)
	if err != nil {
		return err
	}
	return printJSON(stdout, []dicom.Dataset{resp})
}

func printJSON(w io.Writer, datasets []dicom.Dataset) error {
	objs, err := dicomjson.EncodeAll(datasets)
	if err != nil {
		return err
	}
	if objs == nil {
		objs = []dicomjson.Object{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(objs)
}
