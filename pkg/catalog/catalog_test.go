package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/voiceloop/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	items := catalog.Default()
	require.Len(t, items, 4)
	assert.Equal(t, "Wax burger", items[0].Name)
	assert.Equal(t, "drink", items[3].Field)

	items[0].Name = "changed"
	assert.Equal(t, "Wax burger", catalog.Default()[0].Name)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
menu:
  - key: salad
    field: food
    name: Wax salad
  - key: water
    field: drink
    name: Wax water
`), 0o644))

	items, err := catalog.Load(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "salad", items[0].Key)
	assert.Equal(t, "Wax water", items[1].Name)
}

func TestLoad_EmptyPath(t *testing.T) {
	items, err := catalog.Load("")
	require.NoError(t, err)
	assert.Equal(t, catalog.Default(), items)
}

func TestLoad_Missing(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "menu: []", "no items"},
		{"missing name", "menu: [{key: a, field: food}]", "needs a key and a name"},
		{"duplicate", "menu: [{key: a, name: A}, {key: a, name: B}]", `duplicate key "a"`},
		{"unknown field", "menu: [{key: a, name: A, price: 3}]", "invalid menu"},
		{"not yaml", "menu: [", "invalid menu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
