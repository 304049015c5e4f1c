// Command trackgen writes a normalised track centreline as CSV, a PNG frame,
// an interactive HTML chart or a YAML preset listing.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/trackline/internal/arclen"
	"github.com/banshee-data/trackline/internal/geom"
	"github.com/banshee-data/trackline/internal/render"
	"github.com/banshee-data/trackline/internal/security"
	"github.com/banshee-data/trackline/internal/tracks"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "trackgen: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	track    string
	samples  int
	width    int
	height   int
	padding  int
	pixel    bool
	format   string
	output   string
	presets  string
	list     bool
	progress float64
	marker   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("trackgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.track, "track", "monza", "Track id")
	fs.IntVar(&o.samples, "samples", 400, "Number of centreline samples")
	fs.IntVar(&o.width, "width", 800, "Viewport width")
	fs.IntVar(&o.height, "height", 600, "Viewport height")
	fs.IntVar(&o.padding, "padding", 40, "Viewport padding")
	fs.BoolVar(&o.pixel, "pixel", false, "Round coordinates to whole pixels")
	fs.StringVar(&o.format, "format", "csv", "Output format: csv, png, html or yaml")
	fs.StringVar(&o.output, "o", "", "Output file (default stdout)")
	fs.StringVar(&o.presets, "presets", "", "YAML file with extra track presets")
	fs.BoolVar(&o.list, "list", false, "List known tracks and exit")
	fs.Float64Var(&o.progress, "progress", 0, "Marker progress for png and html output")
	fs.BoolVar(&o.marker, "marker", true, "Draw the marker in png and html output")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	switch o.format {
	case "csv", "png", "html", "yaml":
	default:
		return o, fmt.Errorf("unknown format %q", o.format)
	}
	if o.samples < 1 {
		return o, fmt.Errorf("samples must be positive, got %d", o.samples)
	}
	return o, nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	reg := tracks.Builtin()
	if o.presets != "" {
		if _, err := reg.LoadFile(o.presets); err != nil {
			return fmt.Errorf("failed to load presets: %w", err)
		}
	}

	if o.list {
		return listTracks(stdout, reg)
	}

	preset, err := reg.Get(o.track)
	if err != nil {
		return err
	}
	if o.format == "yaml" {
		b, err := tracks.MarshalYAML([]tracks.Preset{preset})
		if err != nil {
			return err
		}
		return writeOutput(o.output, stdout, func(w io.Writer) error {
			_, err := w.Write(b)
			return err
		})
	}

	vp := geom.Viewport{Width: o.width, Height: o.height, Padding: o.padding}
	if !vp.Valid() {
		return fmt.Errorf("invalid viewport %dx%d padding %d", vp.Width, vp.Height, vp.Padding)
	}
	raw, err := preset.Generate(o.samples)
	if err != nil {
		return err
	}
	prec := geom.FullPrecision
	if o.pixel {
		prec = geom.PixelPrecision
	}
	pts := geom.Normalize(raw, vp, prec)

	if o.format == "csv" {
		return writeOutput(o.output, stdout, func(w io.Writer) error { return writeCSV(w, pts) })
	}

	scene := render.Scene{Title: preset.Name, Viewport: vp, Points: pts}
	if o.marker {
		m := arclen.BuildLoopIndex(pts).WithFallback(vp.Center()).Resolve(o.progress)
		scene.Marker = &m
	}
	if o.format == "png" {
		return writeOutput(o.output, stdout, scene.WritePNG)
	}
	return writeOutput(o.output, stdout, scene.WriteHTML)
}

// writeOutput sends fn's output to path, or to stdout when path is empty.
func writeOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(out io.Writer, pts []geom.Point) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"index", "x", "y"}); err != nil {
		return err
	}
	for i, p := range pts {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func listTracks(out io.Writer, reg *tracks.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSERIES\tLENGTH KM\tGEOMETRY")
	for _, p := range reg.List("") {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%t\n", p.ID, p.Name, p.Series, p.LengthKm, p.HasGeometry())
	}
	return tw.Flush()
}
