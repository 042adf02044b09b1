// dicescan runs the contour-overlap check for every registration candidate of
// a series pair under every matrix reading, ranks the combinations, and
// optionally emits a CSV report plus a contour overlay PNG for the best
// reading. Summary table goes to stdout.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/oncotools/regfusion/dicecheck"
	"github.com/oncotools/regfusion/fusion"
	"github.com/oncotools/regfusion/pacsdir"
	"github.com/oncotools/regfusion/registration"
	"github.com/oncotools/regfusion/rigid"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

type scanRow struct {
	Candidate string `csv:"candidate"`
	Variant   string `csv:"variant"`
	dicecheck.Result
}

func main() {
	defer STDOUT.Flush()

	var storageRoot, primary, secondary, registrationID, csvOut, overlayOut string

	flag.StringVar(&storageRoot, "storage", "", "Root of the patient store (containing the patients/ directory).")
	flag.StringVar(&primary, "primary", "", "Primary (reference) series instance UID.")
	flag.StringVar(&secondary, "secondary", "", "Secondary series instance UID.")
	flag.StringVar(&registrationID, "registration", "", "(Optional) Restrict to one registration series UID or file path.")
	flag.StringVar(&csvOut, "csv", "", "(Optional) Path for a per-slice CSV report across all candidates and variants.")
	flag.StringVar(&overlayOut, "overlay", "", "(Optional) Path for a contour overlay PNG rendered with the best-scoring reading.")
	flag.Parse()

	if storageRoot == "" || primary == "" || secondary == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime)

	dir := pacsdir.New(storageRoot)
	resolver := &fusion.Resolver{Dir: dir, Log: logger}
	validator := &dicecheck.Validator{Dir: dir, Log: logger}

	patientID, _, err := dir.FindSeries(primary)
	if err != nil {
		log.Fatalln(err)
	}

	candidates, err := resolver.Candidates(patientID, registrationID)
	if err != nil {
		log.Fatalln(err)
	}
	if len(candidates) == 0 {
		log.Fatalln("no registration candidates for patient", patientID)
	}

	ranked, err := validator.Scan(primary, secondary, candidates)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Fprintln(STDOUT, "candidate\tvariant\tslices\tpassed\tmin_dice\tmean_dice")
	for _, r := range ranked {
		s := r.Summary
		fmt.Fprintf(STDOUT, "%s\t%s\t%d\t%d\t%.4f\t%.4f\n",
			r.CandidateID, s.Variant, s.SliceCount, s.Passed, s.MinDice, s.MeanDice)
	}

	if csvOut != "" {
		if err := writeCSV(csvOut, ranked); err != nil {
			log.Fatalln(err)
		}
		logger.Println("Wrote per-slice report to", csvOut)
	}

	if overlayOut != "" {
		best := ranked[0]
		m, err := bestMatrix(candidates, best)
		if err != nil {
			log.Fatalln(err)
		}
		if err := renderOverlay(validator, primary, secondary, m, overlayOut); err != nil {
			log.Fatalln(err)
		}
		logger.Printf("Wrote overlay for %s (%s) to %s\n", best.CandidateID, best.Summary.Variant, overlayOut)
	}
}

func writeCSV(path string, ranked []dicecheck.RankedResult) error {
	var rows []scanRow
	for _, r := range ranked {
		for _, res := range r.Summary.Results {
			rows = append(rows, scanRow{
				Candidate: r.CandidateID,
				Variant:   string(r.Summary.Variant),
				Result:    res,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gocsv.MarshalFile(&rows, f)
}

// bestMatrix recovers the matrix reading behind the top-ranked row.
func bestMatrix(candidates []registration.Candidate, best dicecheck.RankedResult) (rigid.Matrix, error) {
	for _, cand := range candidates {
		if cand.ID == best.CandidateID {
			return dicecheck.Apply(cand.Matrix, best.Summary.Variant)
		}
	}
	return rigid.Identity(), fmt.Errorf("candidate %s vanished between scan and render", best.CandidateID)
}
