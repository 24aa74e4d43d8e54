package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gorgonia.org/tensor"

	"github.com/atlas-bioml/protbench"
	"github.com/atlas-bioml/protbench/datasets"
	"github.com/atlas-bioml/protbench/options"
	"github.com/atlas-bioml/protbench/tasks"
	"github.com/atlas-bioml/protbench/util"
	"github.com/atlas-bioml/protbench/util/checks"
)

var dataFolder string
var predictionsPath string
var outputPath string
var minDistance int
var verbose bool

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Evaluate stored contact predictions against a benchmark validation split",
	Description: `Run evaluates a set of stored contact logits against the contact map validation split.
				Predictions must be a .jsonl file where each line is of the format
				{"id": "record id", "contact_prob": [flattened LxL logits]}.
				`,
	ArgsUsage: `
				--data: path to the benchmark data folder. The validation split is expected at proteinnet/contact_map_valid.jsonl below it.
				--predictions: path to a .jsonl file with one row of contact logits per validation record.
				--output: path to a file where to write the evaluation statistics. If omitted, the statistics are sent to stdout.
				--minDistance: minimum separation along the chain for a residue pair to be scored.
				`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "data",
			Usage:       "Path to the benchmark data folder",
			Aliases:     []string{"d"},
			Destination: &dataFolder,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "predictions",
			Usage:       "Path to the stored predictions",
			Aliases:     []string{"p"},
			Destination: &predictionsPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path to output",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.IntFlag{
			Name:        "minDistance",
			Usage:       "Minimum residue separation for scored pairs",
			Aliases:     []string{"m"},
			Destination: &minDistance,
			Value:       6,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Usage:       "Print per-batch results",
			Aliases:     []string{"v"},
			Destination: &verbose,
		},
	},
	Action: func(ctx *cli.Context) error {
		task, err := tasks.NewContactMapTask(options.WithMinResidueDistance(minDistance))
		if err != nil {
			return err
		}

		validFiles, err := task.ValidFiles(dataFolder)
		if err != nil {
			return err
		}

		schedule := datasets.DefaultSchedule().RescaleForContactMaps()
		dataset, err := datasets.NewProteinDataset(validFiles[0], schedule, options.Defaults().MaxSequenceLength)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := dataset.Close(); closeErr != nil {
				fmt.Fprintln(os.Stderr, closeErr)
			}
		}()

		predictor, err := predictorFromFile(predictionsPath)
		if err != nil {
			return err
		}

		session, err := protbench.NewEvaluationSession(protbench.EvaluationConfig{
			Task:      task,
			Dataset:   dataset,
			Predictor: predictor,
			Verbose:   verbose,
		})
		if err != nil {
			return err
		}

		stats, err := session.Evaluate()
		if err != nil {
			return err
		}

		if outputPath != "" {
			return session.Save(outputPath)
		}

		var statsBytes []byte
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			statsBytes, err = jsoniter.MarshalIndent(stats, "", "  ")
		} else {
			statsBytes, err = jsoniter.Marshal(stats)
		}
		if err != nil {
			return err
		}
		statsBytes = append(statsBytes, '\n')
		_, err = os.Stdout.Write(statsBytes)
		return err
	},
}

type predictionRow struct {
	ID          string    `json:"id"`
	ContactProb []float32 `json:"contact_prob"`
}

func readPredictions(path string) (rows map[string][]float32, err error) {
	sourceFile, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, sourceFile.Close())
	}()

	rows = map[string][]float32{}
	reader := bufio.NewReader(sourceFile)
	for {
		lineBytes, readErr := util.ReadLine(reader)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
		if len(lineBytes) == 0 {
			continue
		}
		var row predictionRow
		if unmarshalErr := jsoniter.Unmarshal(lineBytes, &row); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to parse prediction line: %w", unmarshalErr)
		}
		rows[row.ID] = row.ContactProb
	}
	return rows, err
}

// predictorFromFile builds a predictor that looks up stored logits by record
// id and pads them into the batch's (B, L, L) shape. Padding positions get
// zero logits; they are excluded from loss and metric by the pair mask anyway.
func predictorFromFile(path string) (protbench.Predictor, error) {
	rows, err := readPredictions(path)
	if err != nil {
		return nil, err
	}
	return func(batch *tasks.Batch) (*tensor.Dense, error) {
		size := batch.Size()
		length := batch.PaddedLength()
		backing := make([]float32, size*length*length)
		for n, id := range batch.IDs {
			logits, ok := rows[id]
			if !ok {
				return nil, fmt.Errorf("no stored predictions for record %s", id)
			}
			trueLen := batch.ProteinLength[n]
			if len(logits) != trueLen*trueLen {
				return nil, fmt.Errorf("record %s has %d stored logits, expected %d", id, len(logits), trueLen*trueLen)
			}
			base := n * length * length
			for i := 0; i < trueLen; i++ {
				copy(backing[base+i*length:], logits[i*trueLen:(i+1)*trueLen])
			}
		}
		return tensor.New(tensor.WithShape(size, length, length), tensor.WithBacking(backing)), nil
	}, nil
}

func main() {
	app := &cli.App{
		Name:     "protbench",
		Usage:    "Protein representation benchmarks from the command line",
		Commands: []*cli.Command{runCommand},
	}
	checks.Check(app.Run(os.Args))
}
