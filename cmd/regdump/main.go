// regdump prints every transform candidate found in a DICOM spatial
// registration object, with rotation and translation diagnostics. Emits to
// stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/oncotools/regfusion/registration"
	"github.com/oncotools/regfusion/rigid"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var path string

	flag.StringVar(&path, "path", "", "Path to a single spatial registration (REG) .dcm file.")
	flag.Parse()

	if path == "" {
		flag.Usage()
		os.Exit(1)
	}

	// No store to infer frames from, so ambiguous objects report which
	// referenced series would need resolving.
	candidates, skipped, err := registration.ParseFile(path, nil)
	if err != nil {
		log.Fatalln(err)
	}

	for _, skip := range skipped {
		log.Println("skipped:", skip)
	}

	if len(candidates) == 0 {
		log.Fatalln("no usable transform candidates in", path)
	}

	for _, cand := range candidates {
		printCandidate(cand)
	}
}

func printCandidate(cand registration.Candidate) {
	fmt.Fprintf(STDOUT, "candidate %s\n", cand.ID)
	fmt.Fprintf(STDOUT, "  frames: %s -> %s (%s)\n", cand.SourceFrame, cand.TargetFrame, cand.FrameProvenance)
	fmt.Fprintf(STDOUT, "  type: %s\n", cand.MatrixType)

	if len(cand.ReferencedSeries) > 0 {
		series := make([]string, 0, len(cand.ReferencedSeries))
		for uid := range cand.ReferencedSeries {
			series = append(series, uid)
		}
		sort.Strings(series)
		fmt.Fprintf(STDOUT, "  referenced series: %v\n", series)
	}

	m := cand.Matrix
	for row := 0; row < 4; row++ {
		fmt.Fprintf(STDOUT, "  [% 10.5f % 10.5f % 10.5f % 10.5f]\n",
			m[row*4], m[row*4+1], m[row*4+2], m[row*4+3])
	}

	rx, ry, rz := rigid.EulerZYXDegrees(m)
	t := m.Translation()
	fmt.Fprintf(STDOUT, "  rotation (deg): x=%.3f y=%.3f z=%.3f\n", rx, ry, rz)
	fmt.Fprintf(STDOUT, "  translation (mm): x=%.3f y=%.3f z=%.3f\n", t[0], t[1], t[2])
	fmt.Fprintf(STDOUT, "  identity: %v\n", rigid.IsIdentity(m, rigid.RigidTolerance))
	fmt.Fprintln(STDOUT)
}
