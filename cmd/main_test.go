package main

import (
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/atlas-bioml/protbench"
	"github.com/atlas-bioml/protbench/datasets"
)

func writeValidationData(t *testing.T, dataFolder string) []datasets.ProteinRecord {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dataFolder, "proteinnet"), os.ModePerm))

	length := 12
	records := make([]datasets.ProteinRecord, 2)
	for n := range records {
		primary := make([]int32, length)
		valid := make([]bool, length)
		contacts := make([][]float32, length)
		for i := 0; i < length; i++ {
			primary[i] = int32(i % 20)
			valid[i] = true
			contacts[i] = make([]float32, length)
		}
		for i := 0; i < length; i++ {
			for j := i + 6; j < length; j++ {
				contacts[i][j] = 1.0
				contacts[j][i] = 1.0
			}
		}
		records[n] = datasets.ProteinRecord{
			ID:            string(rune('a' + n)),
			Primary:       primary,
			ProteinLength: length,
			ValidMask:     valid,
			ContactMap:    contacts,
		}
	}

	validFile, err := os.Create(filepath.Join(dataFolder, "proteinnet", "contact_map_valid.jsonl"))
	require.NoError(t, err)
	for _, record := range records {
		lineBytes, marshalErr := jsoniter.Marshal(record)
		require.NoError(t, marshalErr)
		_, err = validFile.Write(append(lineBytes, '\n'))
		require.NoError(t, err)
	}
	require.NoError(t, validFile.Close())
	return records
}

func writePredictions(t *testing.T, path string, records []datasets.ProteinRecord) {
	t.Helper()
	predFile, err := os.Create(path)
	require.NoError(t, err)
	for _, record := range records {
		length := record.ProteinLength
		logits := make([]float32, length*length)
		for i := 0; i < length; i++ {
			for j := 0; j < length; j++ {
				if record.ContactMap[i][j] > 0 {
					logits[i*length+j] = 10.0
				} else {
					logits[i*length+j] = -10.0
				}
			}
		}
		lineBytes, marshalErr := jsoniter.Marshal(predictionRow{ID: record.ID, ContactProb: logits})
		require.NoError(t, marshalErr)
		_, err = predFile.Write(append(lineBytes, '\n'))
		require.NoError(t, err)
	}
	require.NoError(t, predFile.Close())
}

func TestRunCli(t *testing.T) {
	dataFolder := t.TempDir()
	records := writeValidationData(t, dataFolder)

	predictionsFile := filepath.Join(dataFolder, "predictions.jsonl")
	writePredictions(t, predictionsFile, records)
	outputFile := filepath.Join(dataFolder, "statistics.json")

	app := &cli.App{
		Name:     "protbench",
		Commands: []*cli.Command{runCommand},
	}
	require.NoError(t, app.Run([]string{"protbench", "run",
		"--data", dataFolder,
		"--predictions", predictionsFile,
		"--output", outputFile,
	}))

	statsBytes, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var stats protbench.EvaluationStatistics
	require.NoError(t, jsoniter.Unmarshal(statsBytes, &stats))
	assert.Equal(t, 1, stats.Batches)
	assert.InDelta(t, 1.0, float64(stats.Metrics["ACC"]), 1e-4)
	assert.Less(t, stats.MeanLoss, float32(0.1))
}

func TestRunCliMissingData(t *testing.T) {
	dataFolder := t.TempDir()
	app := &cli.App{
		Name:     "protbench",
		Commands: []*cli.Command{runCommand},
	}
	err := app.Run([]string{"protbench", "run",
		"--data", dataFolder,
		"--predictions", filepath.Join(dataFolder, "predictions.jsonl"),
	})
	assert.ErrorContains(t, err, "contact_map_valid.jsonl")
}

func TestReadPredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"id":"a","contact_prob":[0.5,1.5]}`+"\n"+
			`{"id":"b","contact_prob":[-1]}`+"\n"), os.ModePerm))

	rows, err := readPredictions(path)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1.5}, rows["a"])
	assert.Equal(t, []float32{-1}, rows["b"])
}
