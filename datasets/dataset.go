package datasets

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"gorgonia.org/tensor"

	"github.com/atlas-bioml/protbench/tasks"
	"github.com/atlas-bioml/protbench/util"
)

// Dataset yields padded, length-bucketed batches of protein records.
type Dataset interface {
	YieldBatch() (*tasks.Batch, error)
	Reset()
	SetVerbose(v bool)
	Close() error
}

// ProteinRecord is a single deserialized protein example. Records are stored
// one JSON object per line:
// {"id":"1abc_A","primary":[12,4,...],"protein_length":3,"valid_mask":[true,true,true],"contact_map":[[0,0,1],[0,0,0],[1,0,0]]}
type ProteinRecord struct {
	ID            string      `json:"id"`
	Primary       []int32     `json:"primary"`
	ProteinLength int         `json:"protein_length"`
	ValidMask     []bool      `json:"valid_mask"`
	ContactMap    [][]float32 `json:"contact_map"`
}

// Validate checks the internal consistency of a record.
func (r *ProteinRecord) Validate() error {
	if r.ProteinLength <= 0 {
		return fmt.Errorf("record %s has non-positive protein length %d", r.ID, r.ProteinLength)
	}
	if len(r.Primary) != r.ProteinLength {
		return fmt.Errorf("record %s has %d primary entries for protein length %d", r.ID, len(r.Primary), r.ProteinLength)
	}
	if len(r.ValidMask) != r.ProteinLength {
		return fmt.Errorf("record %s has %d valid mask entries for protein length %d", r.ID, len(r.ValidMask), r.ProteinLength)
	}
	if len(r.ContactMap) != r.ProteinLength {
		return fmt.Errorf("record %s has %d contact map rows for protein length %d", r.ID, len(r.ContactMap), r.ProteinLength)
	}
	for i, row := range r.ContactMap {
		if len(row) != r.ProteinLength {
			return fmt.Errorf("record %s contact map row %d has %d entries for protein length %d", r.ID, i, len(row), r.ProteinLength)
		}
	}
	return nil
}

// ProteinDataset reads protein records from a .jsonl file (or an in-memory
// slice), groups them by length bucket and yields padded batches. Records
// longer than the configured maximum, or falling into a disabled bucket
// (batch size 0), are skipped.
type ProteinDataset struct {
	path              string
	records           []ProteinRecord
	schedule          *BucketSchedule
	maxSequenceLength int

	sourceFile io.ReadCloser
	reader     *bufio.Reader
	cursor     int
	pending    [][]ProteinRecord
	exhausted  bool
	batchN     int
	skipped    int
	verbose    bool
}

// NewProteinDataset creates a dataset reading from a .jsonl file. The
// schedule decides how records are grouped; pass a rescaled schedule for
// pairwise tasks.
func NewProteinDataset(path string, schedule *BucketSchedule, maxSequenceLength int) (*ProteinDataset, error) {
	if path == "" {
		return nil, fmt.Errorf("dataset path is required")
	}
	if filepath.Ext(path) != ".jsonl" {
		return nil, fmt.Errorf("dataset path must be a .jsonl file")
	}
	d := &ProteinDataset{
		path:              path,
		schedule:          schedule,
		maxSequenceLength: maxSequenceLength,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	sourceReadCloser, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	d.sourceFile = sourceReadCloser
	d.reader = bufio.NewReader(sourceReadCloser)
	d.pending = make([][]ProteinRecord, len(schedule.Boundaries))
	return d, nil
}

// NewInMemoryProteinDataset creates a dataset from a slice of records.
func NewInMemoryProteinDataset(records []ProteinRecord, schedule *BucketSchedule, maxSequenceLength int) (*ProteinDataset, error) {
	d := &ProteinDataset{
		records:           records,
		schedule:          schedule,
		maxSequenceLength: maxSequenceLength,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	d.pending = make([][]ProteinRecord, len(schedule.Boundaries))
	return d, nil
}

func (d *ProteinDataset) validate() error {
	if d.schedule == nil {
		return fmt.Errorf("bucket schedule is required")
	}
	if len(d.schedule.Boundaries) != len(d.schedule.BatchSizes) {
		return fmt.Errorf("bucket schedule has %d boundaries but %d batch sizes", len(d.schedule.Boundaries), len(d.schedule.BatchSizes))
	}
	if d.maxSequenceLength <= 0 {
		return fmt.Errorf("max sequence length must be greater than 0")
	}
	return nil
}

func (d *ProteinDataset) SetVerbose(v bool) {
	d.verbose = v
}

// Skipped returns the number of records dropped so far because they were too
// long or fell into a disabled bucket.
func (d *ProteinDataset) Skipped() int {
	return d.skipped
}

func (d *ProteinDataset) nextRecord() (*ProteinRecord, error) {
	if d.exhausted {
		return nil, io.EOF
	}
	if d.records != nil {
		if d.cursor >= len(d.records) {
			return nil, io.EOF
		}
		record := d.records[d.cursor]
		d.cursor++
		return &record, nil
	}
	for {
		lineBytes, readErr := util.ReadLine(d.reader)
		if readErr != nil {
			return nil, readErr
		}
		if len(lineBytes) == 0 {
			continue
		}
		var record ProteinRecord
		if err := jsoniter.Unmarshal(lineBytes, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON line: %w", err)
		}
		return &record, nil
	}
}

// YieldBatch returns the next padded batch. It reads records until some
// bucket reaches its batch size. At the end of the data any partially filled
// buckets are flushed one batch per call, then io.EOF is returned.
func (d *ProteinDataset) YieldBatch() (*tasks.Batch, error) {
	for {
		record, err := d.nextRecord()
		if err == io.EOF {
			d.exhausted = true
			if batch := d.flushPending(); batch != nil {
				return batch, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if validateErr := record.Validate(); validateErr != nil {
			return nil, validateErr
		}
		if record.ProteinLength > d.maxSequenceLength {
			d.skipped++
			continue
		}
		bucket := d.schedule.BucketFor(record.ProteinLength)
		size := d.schedule.BatchSizes[bucket]
		if size == 0 {
			d.skipped++
			continue
		}
		d.pending[bucket] = append(d.pending[bucket], *record)
		if len(d.pending[bucket]) >= size {
			records := d.pending[bucket]
			d.pending[bucket] = nil
			d.batchN++
			return newBatch(records), nil
		}
	}
}

func (d *ProteinDataset) flushPending() *tasks.Batch {
	for i, records := range d.pending {
		if len(records) > 0 {
			d.pending[i] = nil
			d.batchN++
			return newBatch(records)
		}
	}
	return nil
}

// Reset rewinds the dataset to the start of the data (after the epoch is done).
func (d *ProteinDataset) Reset() {
	if d.verbose {
		fmt.Printf("completed epoch in %d batches (%d records skipped), resetting dataset\n", d.batchN, d.skipped)
	}
	d.batchN = 0
	d.skipped = 0
	d.cursor = 0
	d.exhausted = false
	d.pending = make([][]ProteinRecord, len(d.schedule.Boundaries))
	if d.records == nil {
		if err := d.sourceFile.Close(); err != nil {
			panic(err)
		}
		sourceReadCloser, err := util.OpenFile(d.path)
		if err != nil {
			panic(err) // note: these panics will be catched later with the TryExcept
		}
		d.sourceFile = sourceReadCloser
		d.reader = bufio.NewReader(sourceReadCloser)
	}
}

func (d *ProteinDataset) Close() error {
	if d.sourceFile != nil {
		return d.sourceFile.Close()
	}
	return nil
}

// newBatch pads a group of records to their common maximum length and packs
// them into batch tensors.
func newBatch(records []ProteinRecord) *tasks.Batch {
	size := len(records)
	length := 0
	for _, r := range records {
		if r.ProteinLength > length {
			length = r.ProteinLength
		}
	}
	ids := make([]string, size)
	lengths := make([]int, size)
	primary := make([]int32, size*length)
	valid := make([]bool, size*length)
	contacts := make([]float32, size*length*length)
	for n, r := range records {
		ids[n] = r.ID
		lengths[n] = r.ProteinLength
		copy(primary[n*length:], r.Primary)
		copy(valid[n*length:], r.ValidMask)
		base := n * length * length
		for i, row := range r.ContactMap {
			copy(contacts[base+i*length:], row)
		}
	}
	return &tasks.Batch{
		IDs:           ids,
		ProteinLength: lengths,
		Primary:       tensor.New(tensor.WithShape(size, length), tensor.WithBacking(primary)),
		ValidMask:     tensor.New(tensor.WithShape(size, length), tensor.WithBacking(valid)),
		ContactMap:    tensor.New(tensor.WithShape(size, length, length), tensor.WithBacking(contacts)),
	}
}
