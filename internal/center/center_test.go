package center

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const centersYAML = `
centers:
  - name: Wellness Palace
    city: Casablanca
    api_key: key-wp
    location_id: loc-wp
    pipeline_name: Nouveau Pipeline
    calendar_id: cal-wp
    ad_account_id: act_123
    lead_action_type: lead
  - name: Centre Kinaisance
    city: Casablanca
    api_key: key-ck
    location_id: loc-ck
    pipeline_name: Nouveau Pipeline
    calendar_id: cal-ck-1
    calendar_id2: cal-ck-2
    ad_account_id: none
`

func writeCenters(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "centers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	centers, err := Load(writeCenters(t, centersYAML))
	require.NoError(t, err)
	require.Len(t, centers, 2)

	assert.Equal(t, "wellness palace", centers[0].Key())
	assert.True(t, centers[0].HasAdAccount())
	assert.Equal(t, "lead", centers[0].LeadActionType)

	assert.Equal(t, "cal-ck-2", centers[1].CalendarID2)
	assert.False(t, centers[1].HasAdAccount(), `"none" means unset`)
}

func TestLoad_MissingCredentials(t *testing.T) {
	_, err := Load(writeCenters(t, "centers:\n  - name: Broken\n    city: Rabat\n"))
	assert.Error(t, err)
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(writeCenters(t, "centers: []\n"))
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	centers, err := Load(writeCenters(t, centersYAML))
	require.NoError(t, err)

	all, err := Select(centers, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := Select(centers, []string{"  wellness PALACE "})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Wellness Palace", one[0].Name)

	_, err = Select(centers, []string{"Nonexistent"})
	assert.Error(t, err)
}
