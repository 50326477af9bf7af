package selection

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRow(t *testing.T) {
	header := []string{"Symbol", "CHEAP", "Rich"}

	row, ok := ParseRow(header, []string{"ABC", "12.5", "n/a"})
	require.True(t, ok)
	assert.Equal(t, "ABC", row.Symbol)
	v, ok := row.Score("cheap")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
	_, ok = row.Score("rich")
	assert.False(t, ok)

	_, ok = ParseRow(header, []string{"", "1", "2"})
	assert.False(t, ok, "empty symbol")

	_, ok = ParseRow(header, []string{"XYZ", "x", "NaN"})
	assert.False(t, ok, "no parsable score")

	row, ok = ParseRow(header, []string{"PEB PRC", "1,200", "-3"})
	require.True(t, ok)
	assert.Equal(t, 1200.0, row.Scores["cheap"])
	assert.Equal(t, -3.0, row.Scores["rich"])
}

func TestReadRows(t *testing.T) {
	in := "ticker,cheap,rich\nABC,1,2\n,3,4\nDEF,bad,5\nGHI\n"
	rows, err := ReadRows(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "DEF"}, Symbols(rows))
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte("symbol,cheap\nABC,10\n"), 0o644))
	rows, err := CSVSource{Path: path}.Scores(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = CSVSource{Path: filepath.Join(t.TempDir(), "none.csv")}.Scores(context.Background())
	assert.Error(t, err)
}

func TestExclusions(t *testing.T) {
	list, err := ReadExclusions(strings.NewReader("# banned\nABC\n DEF , reason\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "DEF"}, list)

	e := NewExclusions(list...)
	assert.True(t, e.Contains("DEF"))
	assert.False(t, e.Contains("XYZ"))

	path := filepath.Join(t.TempDir(), "excl.txt")
	require.NoError(t, os.WriteFile(path, []byte("XYZ\n"), 0o644))
	require.NoError(t, e.LoadFile(path))
	assert.Equal(t, []string{"XYZ"}, e.List())

	var nilSet *Exclusions
	assert.False(t, nilSet.Contains("ABC"))
}
