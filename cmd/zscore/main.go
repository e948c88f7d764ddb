// zscore turns a collection run's .bin or .csv output into an .xlsx
// workbook with a cumulative z-score line chart. Sample size and
// interval are recovered from the file name, so the input must follow
// the collect naming convention.
package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rvhal/trng_go/bitstat"
	"github.com/rvhal/trng_go/naming"
)

const sheetName = "Zscore"

// block is one sample: a label for the chart axis and its ones count.
type block struct {
	label string
	ones  int
}

// readBin slices the raw byte stream into blocks of blockBits bits and
// counts ones per block. Labels are sequential sample numbers. A
// partial final block is counted over the bytes actually present.
func readBin(path string, blockBits int) ([]block, error) {
	if blockBits%8 != 0 {
		return nil, errors.New("block size must be a multiple of 8 bits for .bin files")
	}
	bytesPerBlock := blockBits / 8
	if bytesPerBlock <= 0 {
		return nil, errors.New("invalid block size")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var blocks []block
	buf := make([]byte, bytesPerBlock)
	for n := 1; ; n++ {
		read, err := io.ReadFull(r, buf)
		if read == 0 {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		blocks = append(blocks, block{
			label: strconv.Itoa(n),
			ones:  bitstat.CountOnes(buf[:read], read*8),
		})
		if read < bytesPerBlock {
			break
		}
	}
	return blocks, nil
}

// readCSV reads timestamp,ones rows as written by collect. Labels are
// the timestamps reduced to HH:MM:SS.
func readCSV(path string) ([]block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	blocks := make([]block, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		onesStr := strings.TrimSpace(rec[1])
		ones, err := strconv.Atoi(onesStr)
		if err != nil {
			return nil, fmt.Errorf("invalid ones value %q: %w", onesStr, err)
		}
		blocks = append(blocks, block{label: timeLabel(strings.TrimSpace(rec[0])), ones: ones})
	}
	return blocks, nil
}

// timeLabel reduces a collect timestamp to HH:MM:SS; unparseable
// labels pass through untouched.
func timeLabel(s string) string {
	for _, layout := range []string{"20060102T15:04:05", time.RFC3339, "2006-01-02 15:04:05", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05")
		}
	}
	return s
}

// writeWorkbook writes labels, ones counts, cumulative means and
// z-scores to a sheet and charts the z-score series.
func writeWorkbook(outPath string, info naming.Info, blocks []block, pts []bitstat.Point, axisHeader string) error {
	f := excelize.NewFile()
	defer f.Close()

	if def := f.GetSheetName(0); def != sheetName {
		f.NewSheet(sheetName)
		f.DeleteSheet(def)
	}

	headers := []string{axisHeader, "ones", "cumulative_mean", "z_test"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellStr(sheetName, cell, h)
	}
	for i := range blocks {
		row := i + 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), blocks[i].label)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", row), blocks[i].ones)
		_ = f.SetCellFloat(sheetName, fmt.Sprintf("C%d", row), pts[i].CumulativeMean, 6, 64)
		_ = f.SetCellFloat(sheetName, fmt.Sprintf("D%d", row), pts[i].ZScore, 6, 64)
	}

	endRow := len(blocks) + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$D$1", sheetName),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetName, endRow),
				Values:     fmt.Sprintf("%s!$D$2:$D$%d", sheetName, endRow),
			},
		},
		Title:  []excelize.RichTextRun{{Text: filepath.Base(outPath)}},
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{
			Text: fmt.Sprintf("Samples from %s source - one every %d second(s)", info.Device, info.Interval),
		}}},
		YAxis: excelize.ChartAxis{Title: []excelize.RichTextRun{{
			Text: fmt.Sprintf("Z-score - sample size = %d bits", info.Bits),
		}}, MajorGridLines: true},
	}
	if err := f.AddChart(sheetName, "F2", chart); err != nil {
		return err
	}
	return f.SaveAs(outPath)
}

func run(path string) error {
	info, err := naming.ParseBaseName(path)
	if err != nil {
		return err
	}

	var blocks []block
	axisHeader := "samples"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin":
		blocks, err = readBin(path, info.Bits)
	case ".csv":
		blocks, err = readCSV(path)
		axisHeader = "time"
	default:
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return errors.New("no samples in input")
	}

	ones := make([]int, len(blocks))
	for i := range blocks {
		ones[i] = blocks[i].ones
	}
	pts := bitstat.ZSeries(ones, info.Bits)

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx"
	return writeWorkbook(out, info, blocks, pts, axisHeader)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: zscore <path-to-.bin-or-.csv>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
