// Command navgeo exercises the geometry, polyline and progress libraries
// from the command line.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dpup/nav.ersn.net/server/internal/clients/graphhopper"
	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/progress"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "point-distance":
		handlePointDistance(os.Args[2:])
	case "decode-polyline":
		handleDecodePolyline(os.Args[2:])
	case "encode-polyline":
		handleEncodePolyline(os.Args[2:])
	case "progress":
		handleProgress(os.Args[2:])
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(args []string) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")
	_ = fs.Parse(args)

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  navgeo point-distance --lat1 38.0675 --lng1 -120.5436 --lat2 38.1391 --lng2 -120.4561")
		fmt.Println("  (Distance between Angels Camp and Murphys)")
		os.Exit(1)
	}

	a := mustCoordinate(*lng1, *lat1)
	b := mustCoordinate(*lng2, *lat2)
	d := geo.Distance(a, b)

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: %s\n", a)
	fmt.Printf("  Point 2: %s\n", b)
	fmt.Printf("  Distance: %.2f meters (%.2f km, %.2f miles)\n", d, d/1000, d*0.000621371)
	fmt.Printf("  Bearing:  %.1f°\n", geo.Bearing(a, b))
}

func handleDecodePolyline(args []string) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	encoded := fs.String("polyline", "", "Encoded polyline string")
	_ = fs.Parse(args)

	if *encoded == "" {
		fmt.Println("Example usage:")
		fmt.Println("  navgeo decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		os.Exit(1)
	}

	points, err := geo.DecodePolyline(*encoded)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	fmt.Printf("Decoded %d points (lon,lat):\n", len(points))
	for i, p := range points {
		fmt.Printf("  %3d: %s\n", i, p)
	}
	fmt.Printf("Length: %.2f meters\n", geo.PathLength(points, 0, len(points)-1))
}

func handleEncodePolyline(args []string) {
	fs := flag.NewFlagSet("encode-polyline", flag.ExitOnError)
	coords := fs.String("points", "", "Space separated lat,lon pairs")
	_ = fs.Parse(args)

	if *coords == "" {
		fmt.Println("Example usage:")
		fmt.Println("  navgeo encode-polyline --points \"38.5,-120.2 40.7,-120.95 43.252,-126.453\"")
		os.Exit(1)
	}

	var points []geo.Coordinate
	for _, pair := range strings.Fields(*coords) {
		var lat, lon float64
		if _, err := fmt.Sscanf(pair, "%f,%f", &lat, &lon); err != nil {
			log.Fatalf("Invalid point %q: %v", pair, err)
		}
		points = append(points, mustCoordinate(lon, lat))
	}
	fmt.Println(geo.EncodePolyline(points))
}

func handleProgress(args []string) {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	routeFile := fs.String("route", "", "GraphHopper JSON response")
	lat := fs.Float64("lat", 0, "Latitude of the position")
	lng := fs.Float64("lng", 0, "Longitude of the position")
	_ = fs.Parse(args)

	if *routeFile == "" {
		fmt.Println("Example usage:")
		fmt.Println("  navgeo progress --route route.json --lat 38.1000 --lng -120.5000")
		os.Exit(1)
	}

	f, err := os.Open(*routeFile)
	if err != nil {
		log.Fatalf("Error opening route: %v", err)
	}
	defer f.Close()

	route, err := graphhopper.ParseResponse(f)
	if err != nil {
		log.Fatalf("Error parsing route: %v", err)
	}

	snap, err := progress.Advance(route, mustCoordinate(*lng, *lat))
	if err != nil {
		log.Fatalf("Error computing progress: %v", err)
	}

	inst := route.Instructions[snap.ActiveInstructionIndex]
	fmt.Printf("Progress along %d point route (%.2f km):\n", len(route.Points), route.TotalDistanceMeters/1000)
	fmt.Printf("  Closest point:    %d (%s)\n", snap.ClosestPointIndex, route.Points[snap.ClosestPointIndex])
	fmt.Printf("  Instruction:      %d %q\n", snap.ActiveInstructionIndex, inst.Text)
	fmt.Printf("  Next maneuver in: %.0f m\n", snap.DistanceToNextManeuverMeters)
	fmt.Printf("  Remaining:        %.0f m, %s\n", snap.RemainingDistanceMeters, snap.RemainingDuration)
	fmt.Printf("  Progress:         %.1f%%\n", snap.ProgressFraction*100)
	fmt.Printf("  Bearing:          %.1f°\n", snap.Bearing)
}

func mustCoordinate(lon, lat float64) geo.Coordinate {
	c, err := geo.NewCoordinate(lon, lat)
	if err != nil {
		log.Fatalf("Invalid coordinate: %v", err)
	}
	return c
}

func printUsage() {
	fmt.Println("navgeo - geometry and route progress utilities")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  navgeo <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  point-distance    Distance and bearing between two points")
	fmt.Println("  decode-polyline   Decode an encoded polyline")
	fmt.Println("  encode-polyline   Encode lat,lon pairs as a polyline")
	fmt.Println("  progress          Progress snapshot for a position on a route")
	fmt.Println("  help              Show this help")
}
