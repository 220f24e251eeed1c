package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_admins.sql", "0002_submissions.sql"}, files)

	for _, f := range files {
		b, err := fs.ReadFile(f)
		require.NoError(t, err)
		assert.Contains(t, string(b), "CREATE TABLE IF NOT EXISTS", f)
	}
}
