package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

var csvHeader = []string{"timestamp", "symbol", "timeframe", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bars to a CSV file with decimal prices rendered
// exactly as stored.
func WriteBarsToCSV(bars []*domain.Bar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(csvHeader)
	for _, b := range bars {
		writer.Write([]string{
			b.Timestamp.Format(time.RFC3339),
			b.Symbol,
			string(b.Timeframe),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			strconv.FormatInt(b.Volume, 10),
		})
	}
	return writer.Error()
}

// ReadBarsFromCSV loads bars written by WriteBarsToCSV. Rows must be in
// chronological order; the reader does not sort.
func ReadBarsFromCSV(filename string) ([]*domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header from '%s': %w", filename, err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("unexpected CSV header in '%s': got %d columns, want %d", filename, len(header), len(csvHeader))
	}

	var bars []*domain.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", line, err)
		}
		bar, err := parseBarRecord(record)
		if err != nil {
			return nil, fmt.Errorf("bad bar at line %d of '%s': %w", line, filename, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(record []string) (*domain.Bar, error) {
	if len(record) != len(csvHeader) {
		return nil, fmt.Errorf("got %d fields, want %d", len(record), len(csvHeader))
	}
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp '%s': %w", record[0], err)
	}

	bar := &domain.Bar{
		Symbol:    record[1],
		Timeframe: domain.Timeframe(record[2]),
		Timestamp: ts,
	}
	prices := []struct {
		dst  *decimal.Decimal
		name string
		src  string
	}{
		{&bar.Open, "open", record[3]},
		{&bar.High, "high", record[4]},
		{&bar.Low, "low", record[5]},
		{&bar.Close, "close", record[6]},
	}
	for _, p := range prices {
		d, err := decimal.NewFromString(p.src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s '%s': %w", p.name, p.src, err)
		}
		*p.dst = d
	}

	volume, err := strconv.ParseInt(record[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid volume '%s': %w", record[7], err)
	}
	bar.Volume = volume
	return bar, nil
}
