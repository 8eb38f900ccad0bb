// Package fastq computes paired-end read statistics from plain or gzipped FASTQ files.
package fastq

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	gfastq "github.com/grailbio/bio/encoding/fastq"
	"github.com/klauspost/compress/gzip"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	phredOffset = 33
	q30         = 30

	// cancelCheckInterval is how many read pairs are scanned between context checks.
	cancelCheckInterval = 1 << 16
)

// MateStats summarizes the reads of one mate.
type MateStats struct {
	Reads       int64
	Bases       int64
	MeanLength  float64
	MeanQuality float64
	Q30Fraction float64
}

// Report holds the statistics of both mates of a sample.
type Report struct {
	R1 MateStats
	R2 MateStats
}

type accumulator struct {
	reads, bases, qualSum, q30Bases int64
}

func (a *accumulator) add(read *gfastq.Read) error {
	if len(read.Seq) != len(read.Qual) {
		return zerr.With(domain.ErrReadsMalformed, "read", read.ID)
	}
	a.reads++
	a.bases += int64(len(read.Seq))
	for i := 0; i < len(read.Qual); i++ {
		q := int64(read.Qual[i]) - phredOffset
		if q < 0 {
			return zerr.With(zerr.With(domain.ErrReadsMalformed, "read", read.ID), "reason", "quality below Phred+33 range")
		}
		a.qualSum += q
		if q >= q30 {
			a.q30Bases++
		}
	}
	return nil
}

func (a *accumulator) stats() MateStats {
	s := MateStats{Reads: a.reads, Bases: a.bases}
	if a.reads > 0 {
		s.MeanLength = float64(a.bases) / float64(a.reads)
	}
	if a.bases > 0 {
		s.MeanQuality = float64(a.qualSum) / float64(a.bases)
		s.Q30Fraction = float64(a.q30Bases) / float64(a.bases)
	}
	return s
}

// QC streams both mates in lockstep. Both files must hold the same number of records
// and pair i of each must carry the same read name.
func QC(ctx context.Context, r1, r2 io.Reader) (Report, error) {
	scanner := gfastq.NewPairScanner(r1, r2, gfastq.ID|gfastq.Seq|gfastq.Qual)

	var acc1, acc2 accumulator
	var read1, read2 gfastq.Read
	for scanner.Scan(&read1, &read2) {
		if acc1.reads%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
		}
		if n1, n2 := ReadName(read1.ID), ReadName(read2.ID); n1 != n2 {
			err := zerr.With(domain.ErrReadsDiscordant, "record", acc1.reads+1)
			err = zerr.With(err, "r1", n1)
			return Report{}, zerr.With(err, "r2", n2)
		}
		if err := acc1.add(&read1); err != nil {
			return Report{}, err
		}
		if err := acc2.add(&read2); err != nil {
			return Report{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return Report{}, translate(err, acc1.reads)
	}
	return Report{R1: acc1.stats(), R2: acc2.stats()}, nil
}

func translate(err error, records int64) error {
	switch {
	case errors.Is(err, gfastq.ErrDiscordant):
		return zerr.With(zerr.With(domain.ErrReadsDiscordant, "reason", "files hold different numbers of records"), "record", records+1)
	case errors.Is(err, gfastq.ErrInvalid), errors.Is(err, gfastq.ErrShort):
		return zerr.With(zerr.Wrap(err, domain.ErrReadsMalformed.Error()), "record", records+1)
	default:
		return zerr.Wrap(err, domain.ErrReadsMalformed.Error())
	}
}

// ReadName returns the name of a read from its header line, without the leading '@',
// the comment and a trailing /1 or /2 mate suffix.
func ReadName(id string) string {
	name := strings.TrimPrefix(id, "@")
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	if strings.HasSuffix(name, "/1") || strings.HasSuffix(name, "/2") {
		name = name[:len(name)-2]
	}
	return name
}

// QCFiles opens both mates, decompressing gzip input, and runs QC.
func QCFiles(ctx context.Context, r1Path, r2Path string) (Report, error) {
	r1, err := Open(r1Path)
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = r1.Close() }()

	r2, err := Open(r2Path)
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = r2.Close() }()

	report, err := QC(ctx, r1, r2)
	if err != nil {
		err = zerr.With(err, "r1_path", r1Path)
		return Report{}, zerr.With(err, "r2_path", r2Path)
	}
	return report, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open opens a FASTQ file. Gzip input is recognized by its magic bytes, not its name.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from task definitions
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInputNotFound.Error()), "path", path)
	}

	br := bufio.NewReaderSize(f, 1<<20)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrReadsMalformed.Error()), "path", path)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, zerr.With(zerr.Wrap(err, domain.ErrReadsMalformed.Error()), "path", path)
		}
		return &readCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	}
	return &readCloser{Reader: br, closers: []io.Closer{f}}, nil
}
