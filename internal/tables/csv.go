package tables

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter  rune // default ','; ';' is detected from the first line when unset
	HasHeader  bool // if true, the first row is consumed and sent to HeaderCh
	HeaderCh   chan<- []string
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV parses r on a goroutine and sends each record on the row channel.
// Both channels are closed when parsing stops; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i := range record {
					record[i] = strings.TrimSpace(record[i])
				}
			}

			if first {
				first = false
				record = stripBOM(record)
				if opts.HasHeader {
					if opts.HeaderCh != nil {
						select {
						case opts.HeaderCh <- record:
						case <-ctx.Done():
							errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
							return
						}
					}
					continue
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func stripBOM(record []string) []string {
	if len(record) > 0 {
		record[0] = strings.TrimPrefix(record[0], "\ufeff")
	}
	return record
}

// readCSVFile returns the header and data rows of a CSV file.
func (l *Loader) readCSVFile(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	opts := l.csvOpts
	if opts.Delimiter == 0 {
		opts.Delimiter, err = sniffDelimiter(f)
		if err != nil {
			return nil, nil, err
		}
	}

	rowCh, errCh := StreamCSV(ctx, f, opts)
	var all [][]string
	for row := range rowCh {
		all = append(all, row)
	}
	if err := <-errCh; err != nil {
		return nil, nil, eris.Wrapf(err, "csv: %s", path)
	}
	if len(all) == 0 {
		return nil, nil, eris.Wrapf(ErrMissingColumn, "csv: %s is empty", path)
	}
	return all[0], all[1:], nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, as spreadsheet exports with comma decimals do. The file offset is
// restored.
func sniffDelimiter(f *os.File) (rune, error) {
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return 0, eris.Wrap(err, "csv: sniff delimiter")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, eris.Wrap(err, "csv: rewind")
	}
	line, _, _ := strings.Cut(string(buf[:n]), "\n")
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';', nil
	}
	return ',', nil
}
