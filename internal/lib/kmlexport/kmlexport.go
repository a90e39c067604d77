// Package kmlexport renders routes and finished trips as KML documents.
package kmlexport

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	kml "github.com/twpayne/go-kml"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/navigation"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

var (
	routeColor = color.RGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0xff}
	trackColor = color.RGBA{R: 0xe8, G: 0x3a, B: 0x1a, A: 0xff}
)

// Options controls the exported document.
type Options struct {
	// Name is the document name, default "Route".
	Name string

	// Track is the sequence of positions actually visited, exported as a
	// second line when non-empty.
	Track []geo.Coordinate

	// Summary, when set, is rendered as the document description.
	Summary *navigation.TripSummary
}

// Write renders route as an indented KML document.
func Write(w io.Writer, route *routing.Route, opts Options) error {
	if err := route.Validate(); err != nil {
		return fmt.Errorf("cannot export route: %w", err)
	}
	return Document(route, opts).WriteIndent(w, "", "  ")
}

// Document builds the KML element tree for route.
func Document(route *routing.Route, opts Options) *kml.CompoundElement {
	name := opts.Name
	if name == "" {
		name = "Route"
	}

	doc := kml.Document(
		kml.Name(name),
		kml.SharedStyle("route",
			kml.LineStyle(kml.Color(routeColor), kml.Width(4)),
		),
		kml.SharedStyle("track",
			kml.LineStyle(kml.Color(trackColor), kml.Width(2)),
		),
	)
	if opts.Summary != nil {
		doc.Add(kml.Description(describeSummary(*opts.Summary)))
	}

	doc.Add(kml.Placemark(
		kml.Name(name),
		kml.Description(fmt.Sprintf("%.1f km, %s planned", route.TotalDistanceMeters/1000, route.TotalDuration)),
		kml.StyleURL("#route"),
		kml.LineString(
			kml.Tessellate(true),
			kml.Coordinates(coordinates(route.Points)...),
		),
	))

	if len(opts.Track) > 1 {
		doc.Add(kml.Placemark(
			kml.Name("Traveled"),
			kml.StyleURL("#track"),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coordinates(opts.Track)...),
			),
		))
	}

	maneuvers := kml.Folder(kml.Name("Instructions"))
	for i, inst := range route.Instructions {
		p := route.Points[inst.IntervalStart]
		maneuvers.Add(kml.Placemark(
			kml.Name(instructionName(i, inst)),
			kml.Description(fmt.Sprintf("%s, %.0f m", inst.Sign, inst.DistanceMeters)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lon, Lat: p.Lat})),
		))
	}
	doc.Add(maneuvers)

	return kml.KML(doc)
}

func instructionName(i int, inst routing.Instruction) string {
	text := strings.TrimSpace(inst.Text)
	if text == "" {
		text = inst.Sign.String()
	}
	return fmt.Sprintf("%d. %s", i+1, text)
}

func describeSummary(s navigation.TripSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Started %s, ended %s (%s).", s.StartedAt.Format("2006-01-02 15:04:05"), s.EndedAt.Format("15:04:05"), s.Elapsed())
	fmt.Fprintf(&b, " Distance %.2f km, traveled %.2f km, average %.1f km/h.", s.TotalDistanceMeters/1000, s.TraveledDistanceMeters/1000, s.AverageSpeedKph)
	if s.Arrived {
		b.WriteString(" Arrived.")
	}
	return b.String()
}

func coordinates(points []geo.Coordinate) []kml.Coordinate {
	out := make([]kml.Coordinate, len(points))
	for i, p := range points {
		out[i] = kml.Coordinate{Lon: p.Lon, Lat: p.Lat}
	}
	return out
}
