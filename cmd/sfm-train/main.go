// Command sfm-train runs the training script over one or more converted
// datasets, saving each run's combined output as <model>/output.txt.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/splatprep/internal/fsutil"
	"github.com/banshee-data/splatprep/internal/invoke"
	"github.com/banshee-data/splatprep/internal/monitoring"
	"github.com/banshee-data/splatprep/internal/security"
	"github.com/banshee-data/splatprep/internal/train"
	"github.com/banshee-data/splatprep/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)

	fs := flag.NewFlagSet("sfm-train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dataPath, modelPath, dataRoot, outputRoot string
		images, python, script                    string
		showVersion                               bool
	)
	fs.StringVar(&dataPath, "s", "", "converted dataset to train on")
	fs.StringVar(&modelPath, "m", "", "model output directory")
	fs.StringVar(&dataRoot, "data", "", "parent of the datasets named as arguments")
	fs.StringVar(&outputRoot, "output", "./output", "parent of per-dataset model directories")
	fs.StringVar(&images, "i", train.DefaultImages, "image subdirectory to train on")
	fs.StringVar(&python, "python", train.DefaultPython, "Python interpreter")
	fs.StringVar(&script, "script", train.DefaultScript, "training script")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprint(stderr, `sfm-train - run training on converted datasets

Usage:
  sfm-train -s <dataset> -m <model> [options]
  sfm-train -data <dir> [-output <dir>] <name>...

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintln(stdout, version.String("sfm-train"))
		return 0
	}

	jobs, err := buildJobs(dataPath, modelPath, dataRoot, outputRoot, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "sfm-train: %v\n", err)
		return 2
	}

	launcher := &train.Launcher{FS: fsutil.OSFileSystem{}, Builder: invoke.NewRealCommandBuilder(), Output: stdout}
	status := 0
	for _, j := range jobs {
		j.Python, j.Script, j.Images = python, script, images
		code, err := launcher.Run(j)
		if err != nil {
			fmt.Fprintf(stderr, "sfm-train: %v\n", err)
			return 1
		}
		// The batch continues past a failed job; the first failure is reported.
		if code != 0 && status == 0 {
			status = code
		}
	}
	return status
}

// buildJobs resolves either a single -s/-m job or one job per named dataset
// under dataRoot.
func buildJobs(dataPath, modelPath, dataRoot, outputRoot string, names []string) ([]train.Job, error) {
	if dataPath != "" {
		if len(names) > 0 {
			return nil, fmt.Errorf("-s cannot be combined with dataset names")
		}
		if modelPath == "" {
			return nil, fmt.Errorf("-s requires -m")
		}
		return []train.Job{{DataPath: dataPath, ModelPath: modelPath}}, nil
	}
	if dataRoot == "" || len(names) == 0 {
		return nil, fmt.Errorf("pass -s and -m, or -data and at least one dataset name")
	}
	jobs := make([]train.Job, 0, len(names))
	for _, n := range names {
		data, err := security.JoinWithin(dataRoot, n)
		if err != nil {
			return nil, fmt.Errorf("dataset name: %w", err)
		}
		model, err := security.JoinWithin(outputRoot, n)
		if err != nil {
			return nil, fmt.Errorf("dataset name: %w", err)
		}
		jobs = append(jobs, train.Job{DataPath: data, ModelPath: model})
	}
	return jobs, nil
}
