package datasets

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// LoadCSV reads a CSV file with a header row. Every column except target
// must be numeric. A non-numeric target is treated as categorical and
// encoded as class codes in lexicographic label order.
func LoadCSV(r io.Reader, target string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	return fromRecords(records, target)
}

// LoadXLSX reads a worksheet laid out like LoadCSV expects. An empty sheet
// name selects the first sheet.
func LoadXLSX(path, sheet, target string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheet)
	}
	return fromRecords(rows, target)
}

func fromRecords(records [][]string, target string) (*Dataset, error) {
	if len(records) < 2 {
		return nil, errors.Wrap(errors.ErrEmptyData, "need a header row and at least one data row")
	}
	header := records[0]
	targetCol := -1
	for j, h := range header {
		if strings.TrimSpace(h) == target {
			targetCol = j
			break
		}
	}
	if targetCol < 0 {
		return nil, errors.NewValidationError("target", "column not found in header", target)
	}
	if len(header) < 2 {
		return nil, errors.NewValueError("LoadData", "no feature columns")
	}

	names := make([]string, 0, len(header)-1)
	for j, h := range header {
		if j != targetCol {
			names = append(names, strings.TrimSpace(h))
		}
	}

	rows := records[1:]
	n, p := len(rows), len(names)
	X := mat.NewDense(n, p, nil)
	rawTarget := make([]string, n)
	for i, row := range rows {
		// excelize drops trailing empty cells
		if len(row) != len(header) {
			return nil, errors.Newf("row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
		k := 0
		for j, cell := range row {
			if j == targetCol {
				rawTarget[i] = strings.TrimSpace(cell)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, column %q", i+2, names[k])
			}
			X.Set(i, k, v)
			k++
		}
	}
	if err := errors.CheckMatrix("LoadData", X, n, p); err != nil {
		return nil, err
	}

	y, labels := encodeTarget(rawTarget)
	return &Dataset{
		X:            X,
		Y:            mat.NewDense(n, 1, y),
		FeatureNames: names,
		TargetName:   target,
		ClassLabels:  labels,
	}, nil
}

// encodeTarget parses a numeric target or, failing that, encodes the
// labels as class codes.
func encodeTarget(raw []string) ([]float64, []string) {
	y := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		y[i] = v
	}
	if numeric {
		return y, nil
	}

	seen := make(map[string]struct{})
	var labels []string
	for _, s := range raw {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			labels = append(labels, s)
		}
	}
	sort.Strings(labels)
	code := make(map[string]float64, len(labels))
	for k, l := range labels {
		code[l] = float64(k)
	}
	for i, s := range raw {
		y[i] = code[s]
	}
	return y, labels
}

// header and rows as strings, target last
func (d *Dataset) records() [][]string {
	n, p := d.X.Dims()
	out := make([][]string, 0, n+1)
	header := append(append([]string(nil), d.FeatureNames...), d.TargetName)
	out = append(out, header)
	for i := 0; i < n; i++ {
		row := make([]string, p+1)
		for j := 0; j < p; j++ {
			row[j] = strconv.FormatFloat(d.X.At(i, j), 'g', -1, 64)
		}
		row[p] = d.targetString(i)
		out = append(out, row)
	}
	return out
}

func (d *Dataset) targetString(i int) string {
	v := d.Y.At(i, 0)
	if d.ClassLabels != nil {
		if k := int(v); k >= 0 && k < len(d.ClassLabels) {
			return d.ClassLabels[k]
		}
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the data set with a header row; the target is the last
// column.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(d.records()); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return cw.Error()
}

// WriteXLSX writes the data set to the first sheet of a new workbook.
func WriteXLSX(path string, d *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, record := range d.records() {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return errors.WithStack(err)
		}
		values := make([]interface{}, len(record))
		for j, s := range record {
			if r > 0 {
				if v, err := strconv.ParseFloat(s, 64); err == nil {
					values[j] = v
					continue
				}
			}
			values[j] = s
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "write row %d", r+1)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
