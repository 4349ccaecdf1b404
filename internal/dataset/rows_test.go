package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, path string) []Row {
	t.Helper()
	var rows []Row
	for row, err := range Rows(path) {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestRows_DetailsFile(t *testing.T) {
	path := writeFile(t, "details.csv",
		"Company Name,Glassdoor Rating,Employee Count\n"+
			"Acme,4.0,51 to 200 Employees\n"+
			"Zeta,N/A,N/A\n")

	rows := collect(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[0].Name)
	assert.Equal(t, "4.0", rows[0].Rating)
	assert.Equal(t, "51 to 200 Employees", rows[0].EmployeeCount)

	attrs := rows[1].Attributes()
	assert.Nil(t, attrs.Rating)
	assert.Nil(t, attrs.EmployeeCountText)
}

func TestRows_AggregatedHeaderAliases(t *testing.T) {
	path := writeFile(t, "agg.csv",
		"Company Name,Max Glassdoor Rating,Max Employee Count\n"+
			"Acme,4.5,5000\n")

	rows := collect(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, "4.5", rows[0].Rating)
	assert.Equal(t, "5000", rows[0].EmployeeCount)
}

func TestRows_SkipsMalformedAndNameless(t *testing.T) {
	path := writeFile(t, "bad.csv",
		"\ufeffCompany Name,Glassdoor Rating,Employee Count\n"+
			"Acme,4.0,10\n"+
			"Broken,4.1\n"+
			",3.0,10\n"+
			"  Zeta  ,3.0,10\n")

	rows := collect(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[0].Name)
	assert.Equal(t, "Zeta", rows[1].Name)
}

func TestRows_Restartable(t *testing.T) {
	path := writeFile(t, "names.csv", "Company Name\nAcme\nZeta\n")

	seq := Rows(path)
	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())
}

func TestRows_MissingFile(t *testing.T) {
	var gotErr error
	for _, err := range Rows(filepath.Join(t.TempDir(), "nope.csv")) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestRows_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	assert.Empty(t, collect(t, path))
}

func TestNames(t *testing.T) {
	t.Run("missing file is empty set", func(t *testing.T) {
		names, err := Names(filepath.Join(t.TempDir(), "out.csv"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		path := writeFile(t, "out.csv",
			"Company Name,Glassdoor Rating,Employee Count\nAcme,4.0,N/A\nAcme,4.5,N/A\nZeta,N/A,N/A\n")
		names, err := Names(path)
		require.NoError(t, err)
		assert.Len(t, names, 2)
		assert.Contains(t, names, "Acme")
		assert.Contains(t, names, "Zeta")
	})
}

func TestReadEntities(t *testing.T) {
	path := writeFile(t, "agg.csv",
		"Company Name,Max Glassdoor Rating,Max Employee Count\n"+
			"Zeta,3.0,N/A\n"+
			"Acme,4.5,5000\n"+
			"Zeta,3.9,10\n")

	entities, err := ReadEntities(path)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, "Zeta", entities[0].Name)
	require.NotNil(t, entities[0].Attrs.Rating)
	assert.InDelta(t, 3.0, *entities[0].Attrs.Rating, 1e-9)
	assert.Nil(t, entities[0].Attrs.EmployeeCountText)

	assert.Equal(t, "Acme", entities[1].Name)
	require.NotNil(t, entities[1].Attrs.EmployeeCountText)
	assert.Equal(t, "5000", *entities[1].Attrs.EmployeeCountText)
}
