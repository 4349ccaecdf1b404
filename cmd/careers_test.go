package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ratings-cli/internal/search"
	"github.com/sells-group/ratings-cli/internal/search/mocks"
)

func TestRunCareers_SkipsMissesByDefault(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(c.Careers.InputPath, []byte(
		"Company Name,Max Glassdoor Rating,Max Employee Count\nAcme,4.5,5000\nZeta,3,N/A\n"), 0o644))

	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, "Acme view job openings", mock.Anything).Return(&search.Results{
		HTML: `<div class="yuRUbf"><a href="https://acme.example/careers">Careers at Acme</a></div>`,
	}, nil).Once()
	client.On("Search", mock.Anything, "Zeta view job openings", mock.Anything).Return(&search.Results{HTML: "<p>none</p>"}, nil).Twice()

	sum, err := runCareers(context.Background(), c, client, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Persisted)

	b, err := os.ReadFile(c.Careers.OutputPath)
	require.NoError(t, err)
	assert.Equal(t,
		"Company Name,Max Glassdoor Rating,Max Employee Count,Careers Site URL\n"+
			"Acme,4.5,5000,https://acme.example/careers\n",
		string(b))

	// Zeta was not written, so it is retried; Acme is not. Persisting the
	// miss this time ends the retries.
	c.Careers.PersistEmpty = true
	sum, err = runCareers(context.Background(), c, client, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Processed)

	b, err = os.ReadFile(c.Careers.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Zeta,3,N/A,N/A\n")
}
