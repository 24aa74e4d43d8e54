// Package protbench evaluates protein representation models on benchmark
// tasks. A task turns batches of deserialized protein records plus externally
// produced prediction tensors into a loss and named metrics; the session
// drives the dataset/task loop and aggregates results.
package protbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gorgonia.org/tensor"

	"github.com/atlas-bioml/protbench/datasets"
	"github.com/atlas-bioml/protbench/tasks"
	"github.com/atlas-bioml/protbench/util"
)

// Predictor produces a prediction tensor for a batch. It stands in for the
// external encoder plus output projection: given a padded batch it must
// return raw logits shaped the way the task expects.
type Predictor func(batch *tasks.Batch) (*tensor.Dense, error)

// EvaluationConfig wires a task, a dataset and a predictor together.
type EvaluationConfig struct {
	Task      tasks.Task
	Dataset   datasets.Dataset
	Predictor Predictor
	Verbose   bool
}

// EvaluationStatistics records per-batch losses and the aggregated metrics of
// an evaluation run.
type EvaluationStatistics struct {
	BatchLosses []float32          `json:"batchLosses"`
	MeanLoss    float32            `json:"meanLoss"`
	Metrics     map[string]float32 `json:"metrics"`
	Batches     int                `json:"batches"`
}

type EvaluationSession struct {
	config     EvaluationConfig
	statistics EvaluationStatistics
}

func NewEvaluationSession(config EvaluationConfig) (*EvaluationSession, error) {
	if config.Task == nil {
		return nil, fmt.Errorf("a task is required")
	}
	if config.Dataset == nil {
		return nil, fmt.Errorf("a dataset is required")
	}
	if config.Predictor == nil {
		return nil, fmt.Errorf("a predictor is required")
	}
	if config.Verbose {
		config.Dataset.SetVerbose(true)
	}
	return &EvaluationSession{config: config}, nil
}

// Statistics returns the results of the last Evaluate call.
func (s *EvaluationSession) Statistics() EvaluationStatistics {
	return s.statistics
}

// Evaluate runs the task over one pass of the dataset and aggregates the
// loss and metrics as means over batches.
func (s *EvaluationSession) Evaluate() (*EvaluationStatistics, error) {
	stats := EvaluationStatistics{Metrics: map[string]float32{}}
	metricSums := map[string]float32{}

	for {
		batch, err := s.config.Dataset.YieldBatch()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		predictions, predErr := s.config.Predictor(batch)
		if predErr != nil {
			return nil, fmt.Errorf("predictor failed on batch %d: %w", stats.Batches, predErr)
		}
		loss, metrics, lossErr := s.config.Task.LossAndMetrics(batch, predictions)
		if lossErr != nil {
			return nil, lossErr
		}
		stats.BatchLosses = append(stats.BatchLosses, loss)
		for name, value := range metrics {
			metricSums[name] += value
		}
		stats.Batches++
		if s.config.Verbose {
			fmt.Printf("batch %d: loss %f, %s %f\n", stats.Batches, loss, s.config.Task.KeyMetric(), metrics[s.config.Task.KeyMetric()])
		}
	}

	if stats.Batches > 0 {
		stats.MeanLoss = util.Mean(stats.BatchLosses)
		for name, sum := range metricSums {
			stats.Metrics[name] = sum / float32(stats.Batches)
		}
	}
	s.statistics = stats
	return &stats, nil
}

// Save writes the evaluation statistics as JSON to path.
func (s *EvaluationSession) Save(path string) (err error) {
	if path == "" {
		return fmt.Errorf("path is required")
	}

	statisticsWriter, err := util.NewFileWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, statisticsWriter.Close())
	}()

	statisticsBytes, err := json.Marshal(s.statistics)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation statistics: %w", err)
	}
	if _, err = statisticsWriter.Write(statisticsBytes); err != nil {
		return fmt.Errorf("failed to write evaluation statistics: %w", err)
	}
	return err
}
