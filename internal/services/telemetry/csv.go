package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
)

// CSVExporter writes telemetry tables as CSV with a leading trade index column.
type CSVExporter struct {
	assetA string
	assetB string
}

// NewCSVExporter creates an exporter; the asset symbols name the balance columns.
func NewCSVExporter(assetA, assetB string) *CSVExporter {
	if assetA == "" {
		assetA = "coin0"
	}
	if assetB == "" {
		assetB = "coin1"
	}
	return &CSVExporter{assetA: strings.ToLower(assetA), assetB: strings.ToLower(assetB)}
}

// Columns returns the header row.
func (e *CSVExporter) Columns() []string {
	return []string{
		"",
		"block_timestamp",
		"block_number",
		"direction",
		"price_oracle",
		"virtual_price",
		"p",
		"dx",
		"dy",
		fmt.Sprintf("pool_%s_balance_before_swap", e.assetA),
		fmt.Sprintf("pool_%s_balance_before_swap", e.assetB),
		fmt.Sprintf("pool_%s_balance_after_swap", e.assetA),
		fmt.Sprintf("pool_%s_balance_after_swap", e.assetB),
		"swap_fee",
		"gas_used",
	}
}

// Write renders the table to w.
func (e *CSVExporter) Write(w io.Writer, table *domain.TelemetryTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(e.Columns()); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	if table != nil {
		for i, row := range table.Rows {
			record := []string{
				strconv.Itoa(i),
				strconv.FormatInt(row.Timestamp, 10),
				strconv.FormatInt(row.BlockNumber, 10),
				row.Direction.String(),
				str(row.OraclePrice),
				str(row.VirtualPrice),
				str(row.SpotPrice),
				str(row.AmountIn),
				str(row.AmountOut),
				str(row.PoolBefore.A),
				str(row.PoolBefore.B),
				str(row.PoolAfter.A),
				str(row.PoolAfter.B),
				str(row.Fee),
				strconv.FormatUint(row.GasUsed, 10),
			}
			if err := cw.Write(record); err != nil {
				return errors.Wrapf(err, "write csv row %d", i)
			}
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteFile writes the table to path atomically via a temp file in the same directory.
func (e *CSVExporter) WriteFile(path string, table *domain.TelemetryTable) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create telemetry dir")
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create telemetry temp file")
	}
	tmp := f.Name()

	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "chmod telemetry temp file")
	}
	if err := e.Write(f, table); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close telemetry temp file")
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "persist telemetry file")
	}

	return nil
}

// FileName returns the deterministic file name of a batch run.
func FileName(prefix string, runID int) string {
	return fmt.Sprintf("%s_%d.csv", prefix, runID)
}

// NextRunID scans dir for files named by FileName and returns one past the
// highest run id found, or 0 when there are none.
func NextRunID(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "scan telemetry dir")
	}

	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `_(\d+)\.csv$`)

	next := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if id+1 > next {
			next = id + 1
		}
	}

	return next, nil
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
