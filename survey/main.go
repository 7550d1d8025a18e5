// Command survey loads packer problem files and reports the size of each.
//
//	survey [-o good.txt] problem.txt problem2.txt.gz ...
//
// Problems are loaded by a pool of CONCURRENCY workers (default: one per
// CPU). The paths of the problems that loaded are written to -o, in
// argument order.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/Jeffail/tunny"

	"github.com/thavlik/grover-packer/packer"
)

type result struct {
	path    string
	summary packer.Summary
	err     error
}

func surveyProblem(path string) *result {
	m, err := packer.LoadFile(path)
	if err != nil {
		return &result{path: path, err: err}
	}
	s, err := packer.Summarize(m)
	return &result{path: path, summary: s, err: err}
}

// survey loads every path on a pool of concurrency workers. Results are
// returned in the order of paths.
func survey(paths []string, concurrency int) []*result {
	pool := tunny.NewFunc(concurrency, func(payload interface{}) interface{} {
		return surveyProblem(payload.(string))
	})
	defer pool.Close()

	results := make([]*result, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i] = pool.Process(path).(*result)
		}(i, path)
	}
	wg.Wait()
	return results
}

func concurrencyFromEnv() (int, error) {
	concStr, ok := os.LookupEnv("CONCURRENCY")
	if !ok {
		return runtime.NumCPU(), nil
	}
	conc, err := strconv.ParseInt(concStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("CONCURRENCY: %v", err)
	}
	if conc < 1 {
		return 0, fmt.Errorf("CONCURRENCY: expected >0, got %d", conc)
	}
	return int(conc), nil
}

// report logs every result and writes the good paths to w. It returns the
// number of problems that failed to load.
func report(w io.Writer, results []*result) (int, error) {
	failed := 0
	for _, r := range results {
		if r.err != nil {
			log.Printf("%v", r.err)
			failed++
			continue
		}
		log.Printf("%s %v", r.path, r.summary)
		if r.summary.SolutionSpaceSize == "1" {
			log.Printf("Warning: %s has a single solution", r.path)
		}
		if _, err := fmt.Fprintln(w, r.path); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

func entry() error {
	out := flag.String("o", "", "write the paths of problems that load to this file (default stdout)")
	flag.Parse()
	if flag.NArg() == 0 {
		return fmt.Errorf("usage: survey [-o good.txt] problem...")
	}
	concurrency, err := concurrencyFromEnv()
	if err != nil {
		return err
	}
	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	log.Printf("Surveying %d problems with concurrency of %d", flag.NArg(), concurrency)
	failed, err := report(w, survey(flag.Args(), concurrency))
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d problems failed to load", failed, flag.NArg())
	}
	return nil
}

func main() {
	log.SetFlags(0)
	if err := entry(); err != nil {
		log.Fatal(err)
	}
}
