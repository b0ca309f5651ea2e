package reports

import (
	"bytes"
	"testing"
	"time"

	"cacao-server/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSnapshotWorkbook(t *testing.T) {
	t2 := time.Date(2024, 6, 14, 10, 10, 0, 0, time.UTC)
	snaps := []entities.Snapshot{
		{Date: t2, Values: map[string]float64{"ph": 4.7, "co2": 400, "lux": 12}},
		{Date: t2.Add(-10 * time.Minute), Values: map[string]float64{"ph": 4.5}},
	}

	data, err := SnapshotWorkbook("2024-001", snaps)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, "date", header[0])
	assert.Equal(t, "ambient_temp", header[1])
	assert.Equal(t, "lux", header[len(header)-1])

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing", name)
		return -1
	}
	assert.Equal(t, "2024-06-14T10:10:00Z", rows[1][0])
	assert.Equal(t, "4.7", rows[1][col("ph")])
	assert.Equal(t, "12", rows[1][col("lux")])
	assert.Equal(t, "4.5", rows[2][col("ph")])
}

func TestColumns_NoExtras(t *testing.T) {
	cols := Columns(nil)
	assert.Equal(t, append([]string{"date"}, entities.MeasurementTypes()...), cols)
}
