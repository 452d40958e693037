package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gobwas/glob"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/config"
	"github.com/pithecene-io/mstream/cli/render"
	"github.com/pithecene-io/mstream/cli/tui"
	"github.com/pithecene-io/mstream/frame"
	"github.com/pithecene-io/mstream/iox"
	"github.com/pithecene-io/mstream/log"
	"github.com/pithecene-io/mstream/metrics"
	"github.com/pithecene-io/mstream/multipart"
	"github.com/pithecene-io/mstream/notify"
	"github.com/pithecene-io/mstream/sink"
	"github.com/pithecene-io/mstream/stream"
	"github.com/pithecene-io/mstream/types"
)

// BuildCommand returns the build command.
func BuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build a multipart document from fields, files and field frames",
		Description: "Fields are added in this order: config file fields, field frames, " +
			"--field, --file, then --attach-dir matches.",
		Flags: concat(CommonFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "boundary",
				Usage: "Boundary string (default: random)",
			},
			&cli.BoolFlag{
				Name:  "envelope",
				Usage: "Prefix the document with its own Content-Type header block",
			},
			&cli.StringFlag{
				Name:  "mime",
				Usage: "Document media type (default: multipart/form-data, envelope: multipart/mixed)",
			},
			&cli.IntFlag{
				Name:  "buffer-size",
				Usage: "Read buffer size for file fields",
			},
			&cli.StringSliceFlag{
				Name:  "field",
				Usage: "Text field as name=value (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "file",
				Usage: "File field as name=path (repeatable)",
			},
			&cli.StringFlag{
				Name:  "attach-dir",
				Usage: "Directory whose matching files are added as file fields",
			},
			&cli.StringFlag{
				Name:  "match",
				Usage: "Glob selecting files under --attach-dir ('**' crosses directories)",
				Value: "**",
			},
			&cli.StringFlag{
				Name:  "frames",
				Usage: "Read field frames from a file, or - for stdin",
			},
			&cli.BoolFlag{
				Name:  "skip-invalid-frames",
				Usage: "Skip frames that fail to decode instead of failing",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write the document to a file, or - for stdout (default when --store is not set)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store the document under this name in the document store",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Render build statistics",
			},
		}, OutputFlags(), StorageFlags(), NotifyFlags()),
		Action: buildAction,
	}
}

// document is what build needs from multipart.Stream and multipart.Envelope.
type document interface {
	sink.Document
	Add(stream.Payload, multipart.FieldOptions) (*multipart.Field, error)
	SetMime(string)
	Close() error
}

// BuildSummary is the --stats payload.
type BuildSummary struct {
	Boundary    string           `json:"boundary"`
	ContentType string           `json:"content_type"`
	Fields      int              `json:"fields"`
	Bytes       int64            `json:"bytes"`
	Out         string           `json:"out,omitempty"`
	Stored      *sink.Record     `json:"stored,omitempty"`
	EventID     string           `json:"event_id,omitempty"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

type builder struct {
	doc        document
	envelope   bool
	store      *sink.Store
	bufferSize int
	logger     *log.Logger
}

func buildAction(c *cli.Context) error {
	if c.Bool("tui") && !c.Bool("stats") {
		return cli.Exit("--tui requires --stats for build", exitInvalidInput)
	}
	if c.IsSet("notify") && c.String("store") == "" {
		return cli.Exit("--notify requires --store", exitInvalidInput)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c, cfg).Named("build")
	defer iox.DiscardErr(logger.Sync)
	choice := resolveStore(c, cfg)
	collector := metrics.NewCollector(choice.sink.Backend, choice.sink.Compression)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mpCfg := multipart.Config{
		Boundary: resolveString(c, "boundary", configVal(cfg, func(c *config.Config) string { return c.Boundary })),
		Logger:   logger,
		Metrics:  collector,
	}
	b := &builder{
		envelope:   resolveBool(c, "envelope", configVal(cfg, func(c *config.Config) bool { return c.Envelope })),
		bufferSize: resolveInt(c, "buffer-size", configVal(cfg, func(c *config.Config) int { return c.BufferSize })),
		logger:     logger,
	}
	if b.envelope {
		b.doc, err = multipart.NewEnvelope(mpCfg)
	} else {
		b.doc, err = multipart.New(mpCfg)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid document options: %v", err), exitInvalidInput)
	}
	defer iox.DiscardClose(b.doc)

	if mt := resolveString(c, "mime", configVal(cfg, func(c *config.Config) string { return c.Mime })); mt != "" {
		b.doc.SetMime(mt)
	}

	storeName := c.String("store")
	if storeName != "" || needsStore(cfg) {
		sctx, cancel := choice.context(ctx)
		b.store, err = openStore(sctx, choice, logger, collector)
		cancel()
		if err != nil {
			return err
		}
	}

	var notifiers []notify.Notifier
	if storeName != "" {
		if notifiers, err = openNotifiers(c, cfg); err != nil {
			return err
		}
		defer func() { _ = notify.CloseAll(notifiers) }()
	}

	specs, err := collectSpecs(c, cfg, logger, collector)
	if err != nil {
		return err
	}
	for i := range specs {
		if err := b.add(ctx, specs[i]); err != nil {
			return err
		}
	}

	summary := BuildSummary{
		Boundary:    b.doc.Boundary(),
		ContentType: b.doc.ContentType(),
		Fields:      b.doc.Len(),
	}

	out := c.String("out")
	toStdout := storeName == "" && (out == "" || out == "-") || out == "-"

	var final sink.Document = b.doc
	if storeName != "" && out != "" {
		var buf bytes.Buffer
		if _, err := b.doc.WriteTo(&buf); err != nil {
			return cli.Exit(fmt.Sprintf("write document: %v", err), exitFailure)
		}
		final = frozenDocument{Document: b.doc, data: buf.Bytes()}
	}

	if storeName == "" || out != "" {
		n, err := writeDocument(c, final, out)
		if err != nil {
			return cli.Exit(fmt.Sprintf("write document: %v", err), exitFailure)
		}
		summary.Bytes = n
		if !toStdout {
			summary.Out = out
		}
	}

	if storeName != "" {
		sctx, cancel := choice.context(ctx)
		rec, err := b.store.PutDocument(sctx, storeName, final)
		cancel()
		if err != nil {
			return storageExit(err)
		}
		summary.Stored = rec
		summary.Bytes = rec.Bytes

		// The document is stored; a failed notification is only reported.
		event := notify.NewDocumentStored(rec, choice.sink.Backend, choice.sink.Path)
		if err := notify.PublishAll(ctx, notifiers, event); err != nil {
			logger.Warn("notification failed", map[string]any{
				"event_id": event.EventID,
				"error":    err.Error(),
			})
		} else if len(notifiers) > 0 {
			summary.EventID = event.EventID
		}
	}

	logger.Info("document built", map[string]any{
		"boundary": summary.Boundary,
		"fields":   summary.Fields,
		"bytes":    summary.Bytes,
	})

	if !c.Bool("stats") {
		return nil
	}
	summary.Metrics = collector.Snapshot()
	if c.Bool("tui") {
		return tui.Run(tui.ViewBuildStats, summary.Metrics)
	}
	// Keep stdout clean for the document itself.
	w := c.App.Writer
	if toStdout {
		w = c.App.ErrWriter
	}
	r, err := render.NewWithWriter(c.String("format"), c.Bool("no-color"), w)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	return r.Render(summary)
}

// needsStore reports whether a config field reads from the store.
func needsStore(cfg *config.Config) bool {
	for _, f := range configVal(cfg, func(c *config.Config) []types.FieldSpec { return c.Fields }) {
		if f.Store != "" {
			return true
		}
	}
	return false
}

// frozenDocument replays one serialization, so one-shot payloads reach
// both the output file and the store.
type frozenDocument struct {
	sink.Document
	data []byte
}

func (f frozenDocument) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.data)
	return int64(n), err
}

func writeDocument(c *cli.Context, doc io.WriterTo, out string) (int64, error) {
	if out == "" || out == "-" {
		return doc.WriteTo(c.App.Writer)
	}
	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	n, err := doc.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// collectSpecs gathers field declarations in build order.
func collectSpecs(c *cli.Context, cfg *config.Config, logger *log.Logger, collector *metrics.Collector) ([]types.FieldSpec, error) {
	specs := append([]types.FieldSpec(nil), configVal(cfg, func(c *config.Config) []types.FieldSpec { return c.Fields })...)

	if src := c.String("frames"); src != "" {
		framed, err := readFrames(c, src, logger, collector)
		if err != nil {
			return nil, err
		}
		specs = append(specs, framed...)
	}

	for _, kv := range c.StringSlice("field") {
		name, value, err := splitAssignment("--field", kv)
		if err != nil {
			return nil, err
		}
		specs = append(specs, types.FieldSpec{Name: name, Value: value})
	}
	for _, kv := range c.StringSlice("file") {
		name, p, err := splitAssignment("--file", kv)
		if err != nil {
			return nil, err
		}
		specs = append(specs, types.FieldSpec{Name: name, File: p})
	}

	if dir := c.String("attach-dir"); dir != "" {
		attached, err := collectAttachments(dir, c.String("match"))
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("--attach-dir: %v", err), exitInvalidInput)
		}
		specs = append(specs, attached...)
	}
	return specs, nil
}

func splitAssignment(flag, kv string) (string, string, error) {
	name, value, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return "", "", cli.Exit(fmt.Sprintf("%s must be name=value, got %q", flag, kv), exitInvalidInput)
	}
	return name, value, nil
}

func readFrames(c *cli.Context, src string, logger *log.Logger, collector *metrics.Collector) ([]types.FieldSpec, error) {
	var r io.Reader = c.App.Reader
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("--frames: %v", err), exitInvalidInput)
		}
		defer f.Close()
		r = f
	}
	specs, err := frame.NewReader(r, frame.ReaderConfig{
		SkipInvalid: c.Bool("skip-invalid-frames"),
		Logger:      logger,
		Metrics:     collector,
	}).ReadAll()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("field frames: %v", err), exitInvalidInput)
	}
	return specs, nil
}

// collectAttachments returns a file field for every regular file under dir
// whose slash-separated relative path matches pattern. The field name is
// the relative path.
func collectAttachments(dir, pattern string) ([]types.FieldSpec, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid --match pattern %q: %w", pattern, err)
	}
	var specs []types.FieldSpec
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if g.Match(rel) {
			specs = append(specs, types.FieldSpec{Name: rel, File: p})
		}
		return nil
	})
	return specs, err
}

// add resolves the payload of spec and adds it to the document.
func (b *builder) add(ctx context.Context, spec types.FieldSpec) error {
	if err := spec.Validate(); err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	payload, filename, closer, err := b.payload(ctx, &spec)
	if err != nil {
		return err
	}

	opts := multipart.FieldOptions{
		Name:            spec.Name,
		Filename:        spec.Filename,
		Disposition:     spec.Disposition,
		Mime:            spec.Mime,
		OmitContentType: spec.OmitContentType,
		Charset:         spec.Charset,
		Encoding:        spec.Encoding,
		Length:          spec.Length,
		Headers:         spec.Headers,
		ID:              spec.ID,
		Description:     spec.Description,
		Location:        spec.Location,
		Language:        spec.Language,
	}
	if opts.Filename == "" {
		opts.Filename = filename
	}
	if opts.Disposition == "" {
		opts.Disposition = b.defaultDisposition(opts.Filename)
	}

	if _, err := b.doc.Add(payload, opts); err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		code := exitFailure
		if errors.Is(err, stream.ErrInvalidArgument) {
			code = exitInvalidInput
		}
		return cli.Exit(fmt.Sprintf("field %q: %v", spec.Name, err), code)
	}
	b.logger.Debug("field added", map[string]any{
		"name":   spec.Name,
		"source": string(spec.Source()),
	})
	return nil
}

// payload opens the field source. closer is non-nil when the payload owns
// a handle that must be released if the field is rejected.
func (b *builder) payload(ctx context.Context, spec *types.FieldSpec) (stream.Payload, string, io.Closer, error) {
	switch spec.Source() {
	case types.SourceData:
		return stream.Bytes(spec.Data), "", nil, nil
	case types.SourceFile:
		r, err := stream.Open(spec.File, os.O_RDONLY, 0, stream.Config{BufferSize: b.bufferSize})
		if err != nil {
			return stream.Payload{}, "", nil, cli.Exit(fmt.Sprintf("field %q: %v", spec.Name, err), exitInvalidInput)
		}
		return stream.Existing(r), filepath.Base(spec.File), r, nil
	case types.SourceStore:
		if b.store == nil {
			return stream.Payload{}, "", nil, cli.Exit(fmt.Sprintf("field %q: store source needs a document store", spec.Name), exitInvalidInput)
		}
		r, err := b.store.Open(ctx, spec.Store)
		if err != nil {
			return stream.Payload{}, "", nil, storageExit(err)
		}
		return stream.Existing(r), path.Base(spec.Store), r, nil
	default:
		return stream.Text(spec.Value), "", nil, nil
	}
}

// defaultDisposition is form-data for form documents. Envelope parts are
// attachments when they carry a filename and inline otherwise.
func (b *builder) defaultDisposition(filename string) string {
	switch {
	case !b.envelope:
		return "form-data"
	case filename != "":
		return "attachment"
	default:
		return "inline"
	}
}
